package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/textsim"
)

// DefaultThreshold is the minimum similarity for a SIMILAR match.
const DefaultThreshold = 0.75

// Matcher finds exact and similar names in the roster. It has no side
// effects.
type Matcher struct {
	repo Lister
}

// NewMatcher creates a matcher reading from repo.
func NewMatcher(repo Lister) *Matcher {
	return &Matcher{repo: repo}
}

// FindCandidates returns the persons colliding with name on day/month.
// EXACT candidates come first, then SIMILAR ones by descending score.
func (m *Matcher) FindCandidates(ctx context.Context, name string, day, month int, threshold float64) ([]domain.DuplicateCandidate, error) {
	persons, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return Candidates(persons, name, day, month, threshold), nil
}

// Candidates screens name against persons.
func Candidates(persons []domain.Person, name string, day, month int, threshold float64) []domain.DuplicateCandidate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	target := textsim.Normalize(name)

	var out []domain.DuplicateCandidate
	for _, p := range persons {
		other := textsim.Normalize(p.Name)
		if other == target && p.Day == day && p.Month == month {
			out = append(out, domain.DuplicateCandidate{PersonID: p.ID, Name: p.Name, Kind: domain.MatchExact, Score: 1})
			continue
		}
		if score := textsim.Similarity(target, other); score >= threshold {
			out = append(out, domain.DuplicateCandidate{PersonID: p.ID, Name: p.Name, Kind: domain.MatchSimilar, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == domain.MatchExact
		}
		return out[i].Score > out[j].Score
	})
	return out
}

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/metrics"
	"github.com/familyhub/aniversaris/internal/pkg/textsim"
)

// Service implements roster business logic. It is safe for concurrent use.
type Service struct {
	repo      Repository
	matcher   CandidateFinder
	threshold float64
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithThreshold sets the similarity threshold.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.threshold = t
		}
	}
}

// WithMatcher replaces the default in-process matcher.
func WithMatcher(m CandidateFinder) Option { return func(s *Service) { s.matcher = m } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics attaches counters.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService creates a registry service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		threshold: DefaultThreshold,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.matcher == nil {
		s.matcher = NewMatcher(repo)
	}
	return s
}

// Locator identifies the target of an update or delete: by id, or by name
// and birthday.
type Locator struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Day   int    `json:"day,omitempty"`
	Month int    `json:"month,omitempty"`
}

func (l Locator) String() string {
	if l.ID != 0 {
		return fmt.Sprintf("id %d", l.ID)
	}
	return fmt.Sprintf("%q %d/%d", l.Name, l.Day, l.Month)
}

// Create validates p, screens it for duplicates unless force is set, and
// stores it.
func (s *Service) Create(ctx context.Context, p domain.Person, force bool) (*domain.Person, error) {
	p.ID = 0
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !force {
		if err := s.screen(ctx, p.Name, p.Day, p.Month, 0); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Insert(ctx, &p); err != nil {
		return nil, domain.Upstream("insert person", err)
	}
	s.metrics.IncPersonCreated()
	s.log.Info("person created", zap.Int64("person_id", p.ID), zap.Bool("forced", force))
	return &p, nil
}

// Update applies patch to the located person. Screening runs only when the
// name or birthday changed, and never matches the person against itself.
func (s *Service) Update(ctx context.Context, loc Locator, patch domain.PersonPatch, force bool) (*domain.Person, error) {
	p, err := s.resolve(ctx, loc)
	if err != nil {
		return nil, err
	}

	identityChanged := patch.Apply(p)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if identityChanged && !force {
		if err := s.screen(ctx, p.Name, p.Day, p.Month, p.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, storeErr("update person", err)
	}
	s.log.Info("person updated", zap.Int64("person_id", p.ID), zap.Bool("identity_changed", identityChanged))
	return p, nil
}

// Delete archives and removes the located person. An archive failure is
// logged and does not block the delete.
func (s *Service) Delete(ctx context.Context, loc Locator) (*domain.Person, error) {
	p, err := s.resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Archive(ctx, *p); err != nil {
		s.log.Warn("archive before delete failed", zap.Int64("person_id", p.ID), zap.Error(err))
	}
	if err := s.repo.Delete(ctx, p.ID); err != nil {
		return nil, storeErr("delete person", err)
	}
	s.log.Info("person deleted", zap.Int64("person_id", p.ID))
	return p, nil
}

// Get returns one person.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Person, error) {
	p, err := s.repo.Get(ctx, id)
	return p, storeErr("get person", err)
}

// List returns the roster in calendar order.
func (s *Service) List(ctx context.Context) ([]domain.Person, error) {
	persons, err := s.repo.List(ctx)
	return persons, storeErr("list persons", err)
}

// Search returns persons whose name contains query or is similar to it,
// ordered by name.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Person, error) {
	q := textsim.Normalize(query)
	if q == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "query is required"}
	}
	persons, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Upstream("search persons", err)
	}

	var out []domain.Person
	for _, p := range persons {
		n := textsim.Normalize(p.Name)
		if strings.Contains(n, q) || textsim.Similarity(n, q) >= s.threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetPhotoURL records the stored photo of a person.
func (s *Service) SetPhotoURL(ctx context.Context, id int64, url string) error {
	return storeErr("set photo", s.repo.SetPhotoURL(ctx, id, url))
}

func (s *Service) resolve(ctx context.Context, loc Locator) (*domain.Person, error) {
	if loc.ID != 0 {
		p, err := s.repo.Get(ctx, loc.ID)
		return p, storeErr("get person", err)
	}
	if strings.TrimSpace(loc.Name) == "" || !domain.ValidBirthday(loc.Day, loc.Month) {
		return nil, &domain.ValidationError{Field: "locator", Message: "id or name, day and month are required"}
	}

	persons, err := s.repo.ListByBirthday(ctx, loc.Day, loc.Month)
	if err != nil {
		return nil, domain.Upstream("locate person", err)
	}
	var matches []domain.Person
	for _, p := range persons {
		if textsim.Equal(p.Name, loc.Name) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, loc)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %d persons match %s", domain.ErrAmbiguous, len(matches), loc)
	}
}

// screen rejects name/day/month when it collides with the roster. exclude
// is the id of the person being updated.
func (s *Service) screen(ctx context.Context, name string, day, month int, exclude int64) error {
	candidates, err := s.matcher.FindCandidates(ctx, name, day, month, s.threshold)
	if err != nil {
		return domain.Upstream("screen duplicates", err)
	}

	var exact, similar []string
	for _, c := range candidates {
		if exclude != 0 && c.PersonID == exclude {
			continue
		}
		if c.Kind == domain.MatchExact {
			exact = append(exact, c.Name)
		} else {
			similar = append(similar, c.Name)
		}
	}

	switch {
	case len(exact) > 0:
		s.metrics.IncDuplicateRejection(string(domain.MatchExact))
		return &domain.DuplicateError{Kind: domain.MatchExact, Names: exact}
	case len(similar) > 0:
		s.metrics.IncDuplicateRejection(string(domain.MatchSimilar))
		return &domain.DuplicateError{Kind: domain.MatchSimilar, Names: similar}
	}
	return nil
}

// storeErr keeps not-found errors as they are and marks everything else as
// an upstream failure.
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.Upstream(op, err)
}

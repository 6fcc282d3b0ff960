package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/aniversaris/internal/domain"
)

func TestCandidates_OrderAndKinds(t *testing.T) {
	persons := []domain.Person{
		{ID: 1, Name: "Josep Maria Vilà", Day: 1, Month: 1},
		{ID: 2, Name: "Pere Soler", Day: 1, Month: 1},
		{ID: 3, Name: "josep maria vila", Day: 1, Month: 1},
		{ID: 4, Name: "Josep Maria Vila", Day: 2, Month: 1},
	}

	got := Candidates(persons, "Josep  Maria Vila", 1, 1, 0.75)
	require.Len(t, got, 3)

	assert.Equal(t, int64(3), got[0].PersonID)
	assert.Equal(t, domain.MatchExact, got[0].Kind)

	assert.Equal(t, int64(4), got[1].PersonID)
	assert.Equal(t, domain.MatchSimilar, got[1].Kind)
	assert.Equal(t, 1.0, got[1].Score)

	assert.Equal(t, int64(1), got[2].PersonID)
	assert.Equal(t, domain.MatchSimilar, got[2].Kind)
	assert.Less(t, got[2].Score, 1.0)
	assert.GreaterOrEqual(t, got[2].Score, 0.75)
}

func TestCandidates_DefaultThreshold(t *testing.T) {
	persons := []domain.Person{{ID: 1, Name: "Montserrat Puig", Day: 1, Month: 1}}
	assert.Empty(t, Candidates(persons, "Joan Puig", 1, 1, 0))
}

func TestMatcher_FindCandidates(t *testing.T) {
	repo := newMemRepo()
	p := domain.Person{Name: "Anna", Day: 5, Month: 3}
	require.NoError(t, repo.Insert(context.Background(), &p))

	got, err := NewMatcher(repo).FindCandidates(context.Background(), " anna", 5, 3, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MatchExact, got[0].Kind)
}

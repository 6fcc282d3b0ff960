package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/aniversaris/internal/domain"
)

func ref(v int64) *int64 { return &v }

func family() []domain.Person {
	return []domain.Person{
		{ID: 1, Name: "Joan", PartnerID: ref(2)},
		{ID: 2, Name: "Maria", PartnerID: ref(1)},
		{ID: 3, Name: "Anna", FatherID: ref(1), MotherID: ref(2)},
		{ID: 4, Name: "Pau", FatherID: ref(1), MotherID: ref(2)},
	}
}

func TestLookups(t *testing.T) {
	g := Build(family())

	f, ok := g.Father(3)
	require.True(t, ok)
	assert.Equal(t, "Joan", f.Name)

	m, ok := g.Mother(4)
	require.True(t, ok)
	assert.Equal(t, "Maria", m.Name)

	p, ok := g.Partner(1)
	require.True(t, ok)
	assert.Equal(t, "Maria", p.Name)

	kids := g.Children(1)
	require.Len(t, kids, 2)
	assert.Equal(t, "Anna", kids[0].Name)
	assert.Equal(t, "Pau", kids[1].Name)

	_, ok = g.Father(1)
	assert.False(t, ok)
}

func TestValidate_Clean(t *testing.T) {
	assert.Empty(t, Build(family()).Validate())
}

func TestValidate_Issues(t *testing.T) {
	persons := []domain.Person{
		{ID: 1, Name: "Joan", PartnerID: ref(2)},
		{ID: 2, Name: "Maria"},
		{ID: 3, Name: "Anna", FatherID: ref(99)},
		{ID: 4, Name: "Pau", MotherID: ref(4)},
	}
	issues := Build(persons).Validate()

	kinds := map[IssueKind]Issue{}
	for _, is := range issues {
		kinds[is.Kind] = is
	}
	require.Len(t, issues, 3)
	assert.Equal(t, int64(1), kinds[IssueAsymmetricPartner].PersonID)
	assert.Equal(t, int64(99), kinds[IssueDanglingReference].TargetID)
	assert.Equal(t, "mother_id", kinds[IssueSelfReference].Field)
}

func TestValidate_AncestryCycle(t *testing.T) {
	persons := []domain.Person{
		{ID: 5, Name: "C", FatherID: ref(3)},
		{ID: 3, Name: "A", FatherID: ref(4)},
		{ID: 4, Name: "B", MotherID: ref(5)},
		{ID: 6, Name: "D", FatherID: ref(3)},
	}
	issues := Build(persons).Validate()

	require.Len(t, issues, 1)
	assert.Equal(t, IssueAncestryCycle, issues[0].Kind)
	assert.Equal(t, []int64{3, 4, 5}, issues[0].Path)
}

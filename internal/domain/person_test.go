package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func idPtr(v int64) *int64    { return &v }
func strPtr(v string) *string { return &v }

func TestParseGender(t *testing.T) {
	tests := []struct {
		in   string
		want Gender
	}{
		{"H", GenderMale},
		{"male", GenderMale},
		{" d ", GenderFemale},
		{"Female", GenderFemale},
		{"", GenderUnspecified},
		{"x", GenderUnspecified},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGender(tt.in))
		})
	}
}

func TestValidBirthday(t *testing.T) {
	assert.True(t, ValidBirthday(29, 2))
	assert.True(t, ValidBirthday(31, 12))
	assert.False(t, ValidBirthday(30, 2))
	assert.False(t, ValidBirthday(31, 4))
	assert.False(t, ValidBirthday(0, 1))
	assert.False(t, ValidBirthday(1, 13))
}

func TestPersonValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     Person
		field string
	}{
		{"ok", Person{Name: "Anna", Day: 5, Month: 3}, ""},
		{"missing name", Person{Name: "  ", Day: 5, Month: 3}, "name"},
		{"bad month", Person{Name: "Anna", Day: 5, Month: 0}, "month"},
		{"bad day", Person{Name: "Anna", Day: 31, Month: 11}, "day"},
		{"self father", Person{ID: 7, Name: "Anna", Day: 5, Month: 3, FatherID: idPtr(7)}, "father_id"},
		{"self partner", Person{ID: 7, Name: "Anna", Day: 5, Month: 3, PartnerID: idPtr(7)}, "partner_id"},
		{"death before birth", Person{Name: "Anna", Day: 5, Month: 3, BirthYear: intPtr(1950), DeathYear: intPtr(1940)}, "death_year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestPersonAgeAndMemory(t *testing.T) {
	p := Person{Name: "Avi", Day: 1, Month: 1, BirthYear: intPtr(1930)}
	age, ok := p.Age(2026)
	assert.True(t, ok)
	assert.Equal(t, 96, age)
	assert.True(t, p.InMemory())

	p.BirthYear = nil
	_, ok = p.Age(2026)
	assert.False(t, ok)
}

func TestPersonPatchApply(t *testing.T) {
	p := Person{ID: 1, Name: "Anna", Day: 5, Month: 3, Alive: true, FatherID: idPtr(9)}

	changed := PersonPatch{Email: strPtr("anna@example.com")}.Apply(&p)
	assert.False(t, changed)
	assert.Equal(t, "anna@example.com", p.Email)

	changed = PersonPatch{Name: strPtr(" Anna Maria "), FatherID: idPtr(0)}.Apply(&p)
	assert.True(t, changed)
	assert.Equal(t, "Anna Maria", p.Name)
	assert.Nil(t, p.FatherID)

	alive := AliveFlag(false)
	PersonPatch{Alive: &alive, DeathYear: intPtr(2020)}.Apply(&p)
	assert.False(t, p.Alive)
	require.NotNil(t, p.DeathYear)
	assert.Equal(t, 2020, *p.DeathYear)
}

func TestAliveFlagJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`""`, true},
		{`"Sí"`, true},
		{`"Si"`, true},
		{`"No"`, false},
		{`"false"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var a AliveFlag
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &a))
			assert.Equal(t, tt.want, bool(a))
		})
	}

	var a AliveFlag
	assert.Error(t, json.Unmarshal([]byte(`12`), &a))
}

func TestErrorKinds(t *testing.T) {
	dup := &DuplicateError{Kind: MatchExact, Names: []string{"Anna"}}
	assert.ErrorIs(t, dup, ErrDuplicateExact)
	assert.NotErrorIs(t, dup, ErrSimilarNames)
	assert.Contains(t, dup.Error(), "Anna")

	sim := &DuplicateError{Kind: MatchSimilar, Names: []string{"Ana", "Annа"}}
	assert.ErrorIs(t, sim, ErrSimilarNames)

	cause := errors.New("connection refused")
	up := Upstream("insert person", cause)
	assert.ErrorIs(t, up, ErrUpstream)
	assert.ErrorIs(t, up, cause)
	assert.Nil(t, Upstream("noop", nil))
}

func TestOutcomeAttempted(t *testing.T) {
	assert.True(t, OutcomeSuccess.Attempted())
	assert.True(t, OutcomeFailed.Attempted())
	assert.False(t, OutcomeNoBirthdays.Attempted())
	assert.False(t, OutcomeSkipped.Attempted())
	assert.Equal(t, "person:42", PersonRecipient(42))
}

package textsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Anna   Puig ", "anna puig"},
		{"ANNA\tPUIG", "anna puig"},
		{"José", "josé"},
		{"Núria", "núria"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Anna Puig", "  anna  PUIG"))
	assert.False(t, Equal("Anna", "Ana"))
}

func TestTrigrams(t *testing.T) {
	got := Trigrams("cat")
	want := []string{"  c", " ca", "cat", "at "}
	assert.Len(t, got, len(want))
	for _, g := range want {
		assert.Contains(t, got, g)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Anna Puig", "anna  puig"))
	assert.Equal(t, 0.0, Similarity("", "Anna"))
	assert.Equal(t, 0.0, Similarity("Anna", "Xavier"))

	ab := Similarity("Josep Maria Vila", "Josep Maria Vilà")
	ba := Similarity("Josep Maria Vilà", "Josep Maria Vila")
	assert.Equal(t, ab, ba)
	assert.GreaterOrEqual(t, ab, 0.75)

	closer := Similarity("Jordi Vila", "Jordi Vilà")
	farther := Similarity("Jordi Vila", "Joan Serra")
	assert.Greater(t, closer, farther)
}

// Package textsim normalizes person names and scores their similarity with
// the trigram measure used by PostgreSQL's pg_trgm extension.
package textsim

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize returns the comparison form of a name: NFC, case folded,
// trimmed, inner whitespace collapsed to single spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether two names are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b. The
// result is symmetric and lies in [0,1]; identical non-empty names score 1.
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// Trigrams returns the trigram set of s. Words are runs of letters and
// digits; each is padded with two leading blanks and one trailing blank.
func Trigrams(s string) map[string]struct{} {
	out := make(map[string]struct{})
	words := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

package domain

// MatchKind distinguishes exact duplicates from similar names.
type MatchKind string

const (
	MatchExact   MatchKind = "EXACT"
	MatchSimilar MatchKind = "SIMILAR"
)

// DuplicateCandidate is an existing person that collides with a candidate
// insert. It is derived on demand and never stored.
type DuplicateCandidate struct {
	PersonID int64     `json:"person_id"`
	Name     string    `json:"name"`
	Kind     MatchKind `json:"kind"`
	Score    float64   `json:"score"`
}

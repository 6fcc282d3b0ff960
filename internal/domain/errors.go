package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by every layer. Handlers map them to status codes
// with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrDuplicateExact = errors.New("a person with the same name and birthday already exists")
	ErrSimilarNames   = errors.New("persons with similar names already exist")
	ErrNotFound       = errors.New("person not found")
	ErrAmbiguous      = errors.New("more than one person matches")
	ErrMaintenance    = errors.New("service under maintenance")
	ErrUpstream       = errors.New("upstream failure")
)

// ValidationError reports the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateError carries the names that blocked an insert. Kind selects
// which sentinel it unwraps to.
type DuplicateError struct {
	Kind  MatchKind
	Names []string
}

func (e *DuplicateError) Error() string {
	if e.Kind == MatchExact {
		return fmt.Sprintf("%s: %s", ErrDuplicateExact, strings.Join(e.Names, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrSimilarNames, strings.Join(e.Names, ", "))
}

func (e *DuplicateError) Unwrap() error {
	if e.Kind == MatchExact {
		return ErrDuplicateExact
	}
	return ErrSimilarNames
}

// UpstreamError wraps a store or provider failure. It matches both
// ErrUpstream and the underlying error.
type UpstreamError struct {
	Op  string
	Err error
}

// Upstream wraps err as an upstream failure of op. A nil err stays nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

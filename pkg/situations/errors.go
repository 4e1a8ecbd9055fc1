// Package situations defines the situation store contract, its structured
// query, and the bookkeeping rules shared by every backend.
package situations

import (
	"errors"
	"fmt"
)

// Standard store error types that all implementations should use.
var (
	// ErrSituationNotFound indicates no situation exists for the given id.
	ErrSituationNotFound = errors.New("situation not found")

	// ErrDuplicateSituation indicates a store call for an id already present.
	ErrDuplicateSituation = errors.New("situation already exists")

	// ErrInvalidSituation indicates a store call with a nil situation or an
	// empty id, rejected before any lookup.
	ErrInvalidSituation = errors.New("situation is invalid")
)

// SituationError wraps situation lifecycle errors with operation context.
type SituationError struct {
	Op          string // Operation being performed (e.g. "Assign", "Store")
	SituationID string
	Err         error
}

func (e *SituationError) Error() string {
	return fmt.Sprintf("%s operation failed for situation %s: %v", e.Op, e.SituationID, e.Err)
}

func (e *SituationError) Unwrap() error {
	return e.Err
}

func (e *SituationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSituationError creates a situation error with context.
func NewSituationError(op, situationID string, err error) *SituationError {
	return &SituationError{
		Op:          op,
		SituationID: situationID,
		Err:         err,
	}
}

// QueryError indicates a malformed or unsupported query predicate, detected
// before any store access.
type QueryError struct {
	Field   string
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid situation query: %s: %s", e.Field, e.Message)
}

// IsSituationNotFound checks if an error indicates a missing situation.
func IsSituationNotFound(err error) bool {
	return errors.Is(err, ErrSituationNotFound)
}

// IsDuplicateSituation checks if an error indicates a duplicate id.
func IsDuplicateSituation(err error) bool {
	return errors.Is(err, ErrDuplicateSituation)
}

// IsInvalidSituation checks if an error indicates a rejected store argument.
func IsInvalidSituation(err error) bool {
	return errors.Is(err, ErrInvalidSituation)
}

// IsQueryError checks if an error indicates a malformed query.
func IsQueryError(err error) bool {
	var queryErr *QueryError

	return errors.As(err, &queryErr)
}

package situations

import (
	"context"
	"time"

	"github.com/epnlabs/sitrep/pkg/models"
)

// Store records situations raised by terminal processing nodes and mutates
// their lifecycle bookkeeping under read-modify-write discipline keyed by
// situation id. Implemented once per backing persistence technology; the
// shared bookkeeping rules live in the lifecycle helpers of this package.
type Store interface {
	// Store persists a new situation. Internal-prefixed situation properties
	// are promoted to their public suffix name (copied, original retained)
	// exactly once, before the record is written. A duplicate id fails with
	// ErrDuplicateSituation and leaves the prior record unchanged.
	Store(ctx context.Context, situation *models.Situation) error

	// GetSituation returns the situation, or ErrSituationNotFound.
	GetSituation(ctx context.Context, id string) (*models.Situation, error)

	// GetSituations returns the situations matching the query, newest first.
	// A malformed query fails with a QueryError before any store access.
	GetSituations(ctx context.Context, query *Query) ([]*models.Situation, error)

	// AssignSituation sets the assignment owner.
	AssignSituation(ctx context.Context, id, userName string) error

	// UnassignSituation clears the assignment owner and any resolution state
	// that is not resolved. A resolved state is sticky against this implicit
	// clearing.
	UnassignSituation(ctx context.Context, id string) error

	// UpdateResolutionState sets the resolution state. Any state may be set
	// from any state; operators may revert a resolution.
	UpdateResolutionState(ctx context.Context, id string, resolutionState models.ResolutionState) error

	// RecordSuccessfulResubmit records that an operator replayed the business
	// transaction behind the situation and it succeeded, clearing any prior
	// resubmit error message.
	RecordSuccessfulResubmit(ctx context.Context, id, userName string) error

	// RecordResubmitFailure records a failed replay attempt with its error
	// message.
	RecordResubmitFailure(ctx context.Context, id, errorMessage, userName string) error

	// Delete removes a single situation.
	Delete(ctx context.Context, situation *models.Situation) error

	// DeleteMatching removes every situation matching the query and returns
	// the number actually deleted, which may differ from the match count
	// under concurrent deletion.
	DeleteMatching(ctx context.Context, query *Query) (int, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// DefaultMaxCount caps query pages when the query does not set one.
const DefaultMaxCount = 100

// Query is the structured predicate set over situations. Zero value matches
// everything; pagination via Offset and MaxCount.
type Query struct {
	ID              string                 `json:"id,omitempty"`
	Type            string                 `json:"type,omitempty"`
	Severity        models.Severity        `json:"severity,omitempty"`
	ResolutionState models.ResolutionState `json:"resolution_state,omitempty"`
	AssignedTo      string                 `json:"assigned_to,omitempty"`

	// Properties match situation properties by equality; every entry must
	// match.
	Properties map[string]string `json:"properties,omitempty"`

	// From and To bound the situation creation timestamp (inclusive From,
	// exclusive To).
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`

	Offset   int `json:"offset,omitempty"`
	MaxCount int `json:"max_count,omitempty"`
}

// Validate rejects malformed predicates before any store access.
func (q *Query) Validate() error {
	if q == nil {
		return nil
	}

	if q.Severity != "" {
		switch q.Severity {
		case models.SeverityCritical, models.SeverityHigh, models.SeverityMedium,
			models.SeverityLow, models.SeverityInfo:
		default:
			return &QueryError{Field: "severity", Message: "unknown severity " + string(q.Severity)}
		}
	}

	if q.ResolutionState != "" && !q.ResolutionState.Valid() {
		return &QueryError{Field: "resolution_state", Message: "unknown state " + string(q.ResolutionState)}
	}

	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return &QueryError{Field: "to", Message: "time range end precedes start"}
	}

	if q.Offset < 0 {
		return &QueryError{Field: "offset", Message: "must not be negative"}
	}

	if q.MaxCount < 0 {
		return &QueryError{Field: "max_count", Message: "must not be negative"}
	}

	return nil
}

// Limit returns the effective page size.
func (q *Query) Limit() int {
	if q == nil || q.MaxCount <= 0 {
		return DefaultMaxCount
	}

	return q.MaxCount
}

// Matches reports whether the situation satisfies every set predicate.
// Backends that evaluate queries in memory use this directly; SQL backends
// translate the same semantics into predicates.
func (q *Query) Matches(situation *models.Situation) bool {
	if q == nil {
		return true
	}

	if q.ID != "" && situation.ID != q.ID {
		return false
	}

	if q.Type != "" && situation.Type != q.Type {
		return false
	}

	if q.Severity != "" && situation.Severity != q.Severity {
		return false
	}

	if q.ResolutionState != "" && situation.ResolutionState() != q.ResolutionState {
		return false
	}

	if q.AssignedTo != "" && situation.AssignedTo() != q.AssignedTo {
		return false
	}

	for key, value := range q.Properties {
		if situation.SituationProperties[key] != value {
			return false
		}
	}

	if !q.From.IsZero() && situation.Timestamp.Before(q.From) {
		return false
	}

	if !q.To.IsZero() && !situation.Timestamp.Before(q.To) {
		return false
	}

	return true
}

package models

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how urgent a detected situation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ResolutionState tracks the remediation lifecycle of a situation.
type ResolutionState string

const (
	ResolutionUnresolved ResolutionState = "unresolved"
	ResolutionInProgress ResolutionState = "in_progress"
	ResolutionResolved   ResolutionState = "resolved"
)

// Valid reports whether the state is a member of the enum domain.
func (s ResolutionState) Valid() bool {
	switch s {
	case ResolutionUnresolved, ResolutionInProgress, ResolutionResolved:
		return true
	default:
		return false
	}
}

// Bookkeeping property names managed by the situation store.
const (
	AssignedToProperty           = "assignedTo"
	ResolutionStateProperty      = "resolutionState"
	ResubmitByProperty           = "resubmitBy"
	ResubmitAtProperty           = "resubmitAt"
	ResubmitResultProperty       = "resubmitResult"
	ResubmitErrorMessageProperty = "resubmitErrorMessage"

	ResubmitResultSuccess = "success"
	ResubmitResultError   = "error"
)

// InternalPropertyPrefix marks situation properties that the store promotes
// to their public suffix name when the situation is first persisted. The
// internal copy is kept as a record of the value at creation time.
const InternalPropertyPrefix = "sitrep:Situation_"

// Situation is a persisted, actionable record of a detected governance
// condition (SLA breach, policy violation, anomaly) derived from activity
// events by a terminal processing node.
type Situation struct {
	ID          string    `json:"id"          validate:"required"`
	Type        string    `json:"type"        validate:"required"`
	Severity    Severity  `json:"severity"    validate:"required"`
	Subject     string    `json:"subject,omitempty"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// SituationProperties describe the detected condition itself.
	SituationProperties map[string]string `json:"situation_properties,omitempty"`

	// Properties hold store-managed bookkeeping (assignment, resolution
	// state, resubmission outcome). Mutated only through store operations.
	Properties map[string]string `json:"properties,omitempty"`
}

// NewSituation creates a situation with a generated id and the current time.
func NewSituation(situationType string, severity Severity) *Situation {
	return &Situation{
		ID:                  uuid.New().String(),
		Type:                situationType,
		Severity:            severity,
		Timestamp:           time.Now().UTC(),
		SituationProperties: map[string]string{},
		Properties:          map[string]string{},
	}
}

// Clone returns a deep copy, so callers can hand situations across store
// boundaries without sharing property maps.
func (s *Situation) Clone() *Situation {
	copied := *s
	copied.SituationProperties = maps.Clone(s.SituationProperties)
	copied.Properties = maps.Clone(s.Properties)

	return &copied
}

// ResolutionState returns the bookkeeping resolution state, defaulting to
// unresolved when unset.
func (s *Situation) ResolutionState() ResolutionState {
	if state, ok := s.Properties[ResolutionStateProperty]; ok {
		return ResolutionState(state)
	}

	return ResolutionUnresolved
}

// AssignedTo returns the assignment owner, or "" when unassigned.
func (s *Situation) AssignedTo() string {
	return s.Properties[AssignedToProperty]
}

// InternalPropertyName reports whether a situation property carries the
// internal prefix and, if so, its public suffix name.
func InternalPropertyName(key string) (string, bool) {
	if strings.HasPrefix(key, InternalPropertyPrefix) {
		return key[len(InternalPropertyPrefix):], true
	}

	return "", false
}

// Package models defines the activity event and situation records exchanged
// between the event processing network and the situation store.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityEvent is a single observed runtime fact (service invoked, message
// sent, fault raised) reported by a monitored application. Events are treated
// as immutable once published into the network.
type ActivityEvent struct {
	ID          string            `json:"id"          validate:"required"`
	Type        string            `json:"type"        validate:"required"`
	Timestamp   time.Time         `json:"timestamp"   validate:"required"`
	Properties  map[string]string `json:"properties,omitempty"`
	Correlation []string          `json:"correlation,omitempty"`
}

// NewActivityEvent creates an event with a generated id and the current time.
func NewActivityEvent(eventType string) *ActivityEvent {
	return &ActivityEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		Properties: map[string]string{},
	}
}

// Property returns the named property, or "" when absent.
func (e *ActivityEvent) Property(name string) string {
	if e.Properties == nil {
		return ""
	}

	return e.Properties[name]
}

// EventList is an ordered batch of activity events sharing a partition key.
// Ordering reflects arrival order and is preserved end-to-end; the list is
// never mutated after construction.
type EventList struct {
	PartitionKey string          `json:"partition_key" validate:"required"`
	Events       []ActivityEvent `json:"events"        validate:"required,min=1,dive"`
}

// NewEventList builds a list for the given key, rejecting empty batches and
// events whose first correlation identifier disagrees with the key.
func NewEventList(partitionKey string, events ...ActivityEvent) (*EventList, error) {
	if partitionKey == "" {
		return nil, fmt.Errorf("event list requires a partition key")
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("event list for key %q is empty", partitionKey)
	}

	copied := make([]ActivityEvent, len(events))
	copy(copied, events)

	return &EventList{PartitionKey: partitionKey, Events: copied}, nil
}

// Len returns the number of events in the list.
func (l *EventList) Len() int {
	return len(l.Events)
}

// First returns the first event of the list.
func (l *EventList) First() ActivityEvent {
	return l.Events[0]
}

// Last returns the last event of the list.
func (l *EventList) Last() ActivityEvent {
	return l.Events[len(l.Events)-1]
}

// Package epn implements the event processing network: a directed graph of
// subjects and processors that routes activity event batches with per-key
// ordering, bounded retry, and fan-out of derived events and situations.
package epn

import (
	"context"

	"github.com/epnlabs/sitrep/pkg/epn/state"
	"github.com/epnlabs/sitrep/pkg/models"
)

// Processor is a unit of correlation, aggregation, or rule logic. The engine
// is agnostic to its internals; it relies only on this contract:
//
//   - Given the same ordered EventList sequence for a key and the same prior
//     state, emissions must be deterministic. A retried delivery replays the
//     same list, so processing must tolerate replay.
//   - A processor that is not yet ready (insufficient correlated events) emits
//     nothing and retains state; that is not an error.
//   - Per-key state is reached only through the supplied handle. The engine
//     serializes invocations per (processor, key), so the handle is safe to
//     use without locking.
//
// Retryable failures are signalled by wrapping the error with Transient.
type Processor interface {
	// ID identifies the processor. It must be stable across registration
	// calls and engine restarts, since it scopes persisted per-key state.
	ID() string

	Process(ctx context.Context, st *state.Handle, events *models.EventList) (*Result, error)
}

// Emission is a derived event list addressed to a downstream subject.
type Emission struct {
	Subject string
	Events  *models.EventList
}

// Result carries a processor's output: derived events re-entering the
// network and terminal situations bound for the situation store.
type Result struct {
	Emissions  []Emission
	Situations []*models.Situation
}

// Emit appends a derived event list for the given subject.
func (r *Result) Emit(subject string, events *models.EventList) {
	r.Emissions = append(r.Emissions, Emission{Subject: subject, Events: events})
}

// Raise appends a terminal situation.
func (r *Result) Raise(situation *models.Situation) {
	r.Situations = append(r.Situations, situation)
}

// Empty reports whether the result carries no output.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Emissions) == 0 && len(r.Situations) == 0)
}

// NotificationListener receives event lists published on a subscribed
// subject. Used for node chaining observation and by external monitoring
// consumers.
type NotificationListener interface {
	Notify(subject string, events *models.EventList)
}

// NotificationListenerFunc adapts a function to the listener capability.
type NotificationListenerFunc func(subject string, events *models.EventList)

func (f NotificationListenerFunc) Notify(subject string, events *models.EventList) {
	f(subject, events)
}

// SituationSink receives terminal situations raised by processors. Satisfied
// by the situation store.
type SituationSink interface {
	Store(ctx context.Context, situation *models.Situation) error
}

// Package responsetime provides a processor that correlates request and
// response events per partition key and raises a response-time situation
// when the observed duration breaches the configured threshold.
package responsetime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/epnlabs/sitrep/pkg/epn"
	"github.com/epnlabs/sitrep/pkg/epn/state"
	"github.com/epnlabs/sitrep/pkg/models"
)

// SituationType identifies situations raised by this processor.
const SituationType = "ResponseTime"

// DurationProperty is the situation property carrying the observed
// request/response delta in milliseconds. Written with the internal prefix
// so the store's promotion makes it public at store time.
const DurationProperty = "duration"

// Config tunes the correlation behaviour.
type Config struct {
	// RequestType and ResponseType select the events to pair.
	RequestType  string
	ResponseType string

	// Threshold is the duration above which a situation is raised. Zero
	// raises a situation for every completed pair.
	Threshold time.Duration

	// Severity of raised situations. Defaults to high.
	Severity models.Severity

	// EmitSubject, when set, receives a derived "responsetime.computed"
	// event for every completed pair, re-entering the network.
	EmitSubject string
}

// Node pairs request and response events. The pending request is kept in the
// per-key state handle, so correlation survives engine restarts when a
// durable state store is configured.
type Node struct {
	id  string
	cfg Config
}

// pending is the persisted per-key state: the request awaiting its response.
type pending struct {
	RequestID string    `json:"request_id"`
	RequestAt time.Time `json:"request_at"`
}

// NewNode creates a response-time processor.
func NewNode(id string, cfg Config) (*Node, error) {
	if cfg.RequestType == "" || cfg.ResponseType == "" {
		return nil, fmt.Errorf("responsetime node %s requires request and response event types", id)
	}

	if cfg.Severity == "" {
		cfg.Severity = models.SeverityHigh
	}

	return &Node{id: id, cfg: cfg}, nil
}

func (n *Node) ID() string {
	return n.id
}

// Process consumes the ordered list, remembering the latest request and
// raising a situation when its response arrives. Replays are safe: the
// result is a function of the list and the stored pending request only.
func (n *Node) Process(ctx context.Context, st *state.Handle, events *models.EventList) (*epn.Result, error) {
	current, err := n.loadPending(ctx, st)
	if err != nil {
		return nil, err
	}

	result := &epn.Result{}

	for _, event := range events.Events {
		switch event.Type {
		case n.cfg.RequestType:
			current = &pending{RequestID: event.ID, RequestAt: event.Timestamp}
		case n.cfg.ResponseType:
			if current == nil {
				// Response without a request in view; not yet ready.
				continue
			}

			n.complete(result, st.Key(), current, event)
			current = nil
		}
	}

	err = n.storePending(ctx, st, current)
	if err != nil {
		return nil, epn.Transient(err)
	}

	return result, nil
}

func (n *Node) complete(result *epn.Result, key string, request *pending, response models.ActivityEvent) {
	duration := response.Timestamp.Sub(request.RequestAt)

	if n.cfg.EmitSubject != "" {
		derived := models.ActivityEvent{
			ID:          response.ID + ":duration",
			Type:        "responsetime.computed",
			Timestamp:   response.Timestamp,
			Correlation: []string{key},
			Properties: map[string]string{
				DurationProperty: strconv.FormatInt(duration.Milliseconds(), 10),
			},
		}

		if list, err := models.NewEventList(key, derived); err == nil {
			result.Emit(n.cfg.EmitSubject, list)
		}
	}

	if duration < n.cfg.Threshold {
		return
	}

	situation := models.NewSituation(SituationType, n.cfg.Severity)
	situation.Subject = key
	situation.Description = fmt.Sprintf("response to %s took %s", request.RequestID, duration)
	situation.SituationProperties[models.InternalPropertyPrefix+DurationProperty] =
		strconv.FormatInt(duration.Milliseconds(), 10)
	situation.SituationProperties["requestId"] = request.RequestID
	situation.SituationProperties["responseId"] = response.ID

	result.Raise(situation)
}

func (n *Node) loadPending(ctx context.Context, st *state.Handle) (*pending, error) {
	raw, err := st.Get(ctx)
	if err != nil {
		return nil, epn.Transient(err)
	}

	if raw == nil {
		return nil, nil
	}

	var current pending

	err = json.Unmarshal(raw, &current)
	if err != nil {
		return nil, fmt.Errorf("corrupt pending request state for key %s: %w", st.Key(), err)
	}

	return &current, nil
}

func (n *Node) storePending(ctx context.Context, st *state.Handle, current *pending) error {
	if current == nil {
		return st.Delete(ctx)
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}

	return st.Put(ctx, raw)
}

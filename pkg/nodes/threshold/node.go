// Package threshold provides a processor that counts events per partition
// key inside a sliding window and raises a situation when the count exceeds
// a configured limit.
package threshold

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

// Config tunes the sliding window.
type Config struct {
	// EventType restricts counting to one event type. Empty counts all.
	EventType string

	// Limit is the count at which a situation is raised.
	Limit int

	// Window is the sliding window width.
	Window time.Duration

	// SituationType and Severity of raised situations.
	SituationType string
	Severity      models.Severity
}

// Node counts events per key. The window contents live in the per-key state
// handle.
type Node struct {
	id  string
	cfg Config
}

type window struct {
	Timestamps []time.Time `json:"timestamps"`
}

// NewNode creates a threshold processor.
func NewNode(id string, cfg Config) (*Node, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("threshold node %s requires a positive limit", id)
	}

	if cfg.Window <= 0 {
		return nil, fmt.Errorf("threshold node %s requires a positive window", id)
	}

	if cfg.SituationType == "" {
		cfg.SituationType = "SLAViolation"
	}

	if cfg.Severity == "" {
		cfg.Severity = models.SeverityMedium
	}

	return &Node{id: id, cfg: cfg}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Process(ctx context.Context, st *state.Handle, events *models.EventList) (*epn.Result, error) {
	raw, err := st.Get(ctx)
	if err != nil {
		return nil, epn.Transient(err)
	}

	var current window

	if raw != nil {
		err = json.Unmarshal(raw, &current)
		if err != nil {
			return nil, fmt.Errorf("corrupt window state for key %s: %w", st.Key(), err)
		}
	}

	result := &epn.Result{}

	for _, event := range events.Events {
		if n.cfg.EventType != "" && event.Type != n.cfg.EventType {
			continue
		}

		current.Timestamps = append(current.Timestamps, event.Timestamp)
		current.prune(event.Timestamp.Add(-n.cfg.Window))

		if len(current.Timestamps) >= n.cfg.Limit {
			result.Raise(n.violation(st.Key(), len(current.Timestamps), event))

			// Start a fresh window after raising, so one sustained burst
			// produces one situation.
			current.Timestamps = nil
		}
	}

	raw, err = json.Marshal(&current)
	if err != nil {
		return nil, err
	}

	err = st.Put(ctx, raw)
	if err != nil {
		return nil, epn.Transient(err)
	}

	return result, nil
}

func (n *Node) violation(key string, count int, last models.ActivityEvent) *models.Situation {
	situation := models.NewSituation(n.cfg.SituationType, n.cfg.Severity)
	situation.Subject = key
	situation.Description = fmt.Sprintf("%d %s events within %s", count, n.cfg.EventType, n.cfg.Window)
	situation.SituationProperties["count"] = strconv.Itoa(count)
	situation.SituationProperties["window"] = n.cfg.Window.String()
	situation.SituationProperties["lastEventId"] = last.ID

	return situation
}

// prune drops timestamps older than the cutoff, keeping order.
func (w *window) prune(cutoff time.Time) {
	kept := w.Timestamps[:0]

	for _, ts := range w.Timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}

	w.Timestamps = kept
}

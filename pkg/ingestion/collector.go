// Package ingestion accepts activity events from producers, applies the
// activity validation capability, and feeds partitioned event lists into the
// processing network.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/validation"
)

// Publisher is the collector's view of the network engine.
type Publisher interface {
	Publish(ctx context.Context, subject string, events *models.EventList) error
}

// Rejection records one event refused by the activity validator.
type Rejection struct {
	EventID string
	Err     error
}

// Collector validates and partitions inbound events. A validation failure
// rejects that event only; the remainder of the batch continues.
type Collector struct {
	subject     string
	keyProperty string
	validator   validation.ActivityValidator
	publisher   Publisher
	logger      *slog.Logger
}

// NewCollector creates a collector publishing to the given root subject. The
// partition key of an event is its first correlation identifier, falling
// back to the configured key property, then to the event id. A nil validator
// admits every event.
func NewCollector(
	subject string,
	keyProperty string,
	activityValidator validation.ActivityValidator,
	publisher Publisher,
	logger *slog.Logger,
) *Collector {
	return &Collector{
		subject:     subject,
		keyProperty: keyProperty,
		validator:   activityValidator,
		publisher:   publisher,
		logger:      logger,
	}
}

// Submit ingests a batch of events. It returns the per-event validation
// rejections, and an error only when publishing a partitioned list failed.
func (c *Collector) Submit(ctx context.Context, events ...*models.ActivityEvent) ([]Rejection, error) {
	var rejections []Rejection

	// Group by key, preserving both arrival order inside each group and the
	// first-seen order of the groups themselves.
	grouped := map[string][]models.ActivityEvent{}
	keys := []string{}

	for _, event := range events {
		// A nil element (a JSON null in a bus batch) is rejected up front,
		// whether or not a validator is configured.
		if event == nil {
			rejections = append(rejections, Rejection{
				Err: fmt.Errorf("%w: event is nil", validation.ErrValidationFailure),
			})

			c.logger.Warn("Rejected activity event", "error", "event is nil")

			continue
		}

		if c.validator != nil {
			err := c.validator.Validate(event)
			if err != nil {
				rejections = append(rejections, Rejection{EventID: event.ID, Err: err})

				c.logger.Warn("Rejected activity event", "eventId", event.ID, "error", err)

				continue
			}
		}

		key := c.partitionKey(event)

		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}

		grouped[key] = append(grouped[key], *event)
	}

	var errs []error

	for _, key := range keys {
		list, err := models.NewEventList(key, grouped[key]...)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		err = c.publisher.Publish(ctx, c.subject, list)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to publish events for key %s: %w", key, err))
		}
	}

	return rejections, errors.Join(errs...)
}

func (c *Collector) partitionKey(event *models.ActivityEvent) string {
	if len(event.Correlation) > 0 {
		return event.Correlation[0]
	}

	if c.keyProperty != "" {
		if value := event.Property(c.keyProperty); value != "" {
			return value
		}
	}

	return event.ID
}

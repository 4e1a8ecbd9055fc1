// Package eventbus provides the wire transport carrying activity events from
// producers to the collector.
package eventbus

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/epnlabs/sitrep/pkg/models"
)

// Topic carries activity event batches.
const Topic = "sitrep.activities"

const batchSizeMetadataKey = "batch_size"

// ActivityHandler consumes one inbound batch of activity events.
type ActivityHandler func(ctx context.Context, events []*models.ActivityEvent) error

// ActivityBus publishes and consumes activity event batches.
type ActivityBus interface {
	Publish(ctx context.Context, events ...*models.ActivityEvent) error
	Subscribe(ctx context.Context, handler ActivityHandler) error
	Close() error
	GenerateID() string
}

// WatermillActivityBus implements ActivityBus over any watermill pub/sub
// pair (Kafka in production, GoChannel in tests).
type WatermillActivityBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewWatermillActivityBus wraps a watermill publisher/subscriber pair.
func NewWatermillActivityBus(pub message.Publisher, sub message.Subscriber) *WatermillActivityBus {
	return &WatermillActivityBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (b *WatermillActivityBus) GenerateID() string {
	return watermill.NewULID()
}

func (b *WatermillActivityBus) Publish(_ context.Context, events ...*models.ActivityEvent) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+b.GenerateID(), payload)
	msg.Metadata.Set(batchSizeMetadataKey, strconv.Itoa(len(events)))

	return b.publisher.Publish(Topic, msg)
}

func (b *WatermillActivityBus) Subscribe(ctx context.Context, handler ActivityHandler) error {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var events []*models.ActivityEvent

			err := json.Unmarshal(msg.Payload, &events)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, events)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *WatermillActivityBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}

package epn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/epnlabs/sitrep/pkg/epn/state"
	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/otelhelper"
)

const tracerName = "github.com/epnlabs/sitrep/pkg/epn"

// Network owns the directed graph from subjects to processors and drives
// delivery. One subject may fan out to multiple processors and one processor
// may subscribe to multiple subjects.
//
// Publish is asynchronous: it returns once every matched delivery is
// enqueued, blocking only on bounded-queue backpressure. Downstream results
// are observed through notification listeners and the situation sink.
type Network struct {
	cfg        Config
	logger     *slog.Logger
	stateStore state.Store
	situations SituationSink
	failures   FailureSink
	dispatcher *dispatcher
	tracer     trace.Tracer

	mu         sync.RWMutex
	processors map[string][]Processor
	listeners  map[string][]NotificationListener
}

// NewNetwork creates an engine with the given collaborators, resolved once
// at construction. A nil stateStore falls back to in-memory state; a nil
// failure sink falls back to logging.
func NewNetwork(
	cfg Config,
	logger *slog.Logger,
	stateStore state.Store,
	situations SituationSink,
	failures FailureSink,
) *Network {
	cfg = cfg.withDefaults()

	if stateStore == nil {
		stateStore = state.NewMemoryStore()
	}

	if failures == nil {
		failures = &LogFailureSink{Logger: logger}
	}

	network := &Network{
		cfg:        cfg,
		logger:     logger,
		stateStore: stateStore,
		situations: situations,
		failures:   failures,
		tracer:     otel.Tracer(tracerName),
		processors: make(map[string][]Processor),
		listeners:  make(map[string][]NotificationListener),
	}

	network.dispatcher = newDispatcher(cfg, network)

	return network
}

// RegisterProcessor subscribes a processor to a subject. Safe while
// deliveries are in flight; only subsequently published lists see the new
// registration.
func (n *Network) RegisterProcessor(subject string, processor Processor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, existing := range n.processors[subject] {
		if existing.ID() == processor.ID() {
			return
		}
	}

	n.processors[subject] = append(slices.Clone(n.processors[subject]), processor)

	n.logger.Info("Registered processor", "subject", subject, "processorId", processor.ID())
}

// UnregisterProcessor removes a processor from a subject. Deliveries already
// matched against the prior registration set complete against that set.
func (n *Network) UnregisterProcessor(subject string, processor Processor) {
	n.mu.Lock()
	defer n.mu.Unlock()

	registered := n.processors[subject]

	for i, existing := range registered {
		if existing.ID() == processor.ID() {
			n.processors[subject] = slices.Delete(slices.Clone(registered), i, i+1)

			n.logger.Info("Unregistered processor", "subject", subject, "processorId", processor.ID())

			return
		}
	}
}

// AddListener subscribes a notification listener to a subject. The listener
// receives every event list published on it, external or derived.
func (n *Network) AddListener(subject string, listener NotificationListener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.listeners[subject] = append(slices.Clone(n.listeners[subject]), listener)
}

// Publish delivers the event list to every processor currently registered on
// the subject. For a fixed partition key, lists reach each processor in
// submission order; distinct keys and processors run concurrently.
func (n *Network) Publish(ctx context.Context, subject string, events *models.EventList) error {
	err := validateEventList(events)
	if err != nil {
		return err
	}

	n.mu.RLock()
	matched := n.processors[subject]
	listeners := n.listeners[subject]
	n.mu.RUnlock()

	for _, listener := range listeners {
		listener.Notify(subject, events)
	}

	var errs []error

	for _, processor := range matched {
		enqueueErr := n.dispatcher.enqueue(ctx, &delivery{
			subject:   subject,
			processor: processor,
			events:    events,
		})
		if enqueueErr != nil {
			errs = append(errs, fmt.Errorf("processor %s: %w", processor.ID(), enqueueErr))
		}
	}

	return errors.Join(errs...)
}

// Close stops delivery processing and releases the state store.
func (n *Network) Close(ctx context.Context) error {
	n.dispatcher.close()

	return n.stateStore.Close(ctx)
}

// handleDelivery runs a single processor invocation attempt.
func (n *Network) handleDelivery(ctx context.Context, d *delivery) error {
	ctx, span := n.tracer.Start(ctx, "epn.process", trace.WithAttributes(
		attribute.String(otelhelper.SubjectKey, d.subject),
		attribute.String(otelhelper.PartitionKeyKey, d.events.PartitionKey),
		attribute.String(otelhelper.ProcessorIDKey, d.processor.ID()),
	))
	defer span.End()

	handle := state.NewHandle(n.stateStore, d.processor.ID(), d.events.PartitionKey)

	result, err := d.processor.Process(ctx, handle, d.events)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrProcessTimeout, err)
		}

		otelhelper.SetError(span, err)

		return err
	}

	d.result = result

	return nil
}

// handleResult fans a processor's output back into the network. Derived
// event lists are enqueued, never processed inline, so per-key serialization
// and backpressure hold under long derivation chains.
func (n *Network) handleResult(d *delivery) {
	if d.result.Empty() {
		return
	}

	ctx := context.Background()

	for _, emission := range d.result.Emissions {
		err := n.Publish(ctx, emission.Subject, emission.Events)
		if err != nil {
			n.failures.ReportFailure(ctx, DeliveryFailure{
				Subject:      emission.Subject,
				PartitionKey: emission.Events.PartitionKey,
				ProcessorID:  d.processor.ID(),
				Attempts:     1,
				Err:          err,
			})
		}
	}

	if len(d.result.Situations) == 0 {
		return
	}

	if n.situations == nil {
		n.logger.Warn("Situation raised but no situation sink configured",
			"processorId", d.processor.ID())

		return
	}

	for _, situation := range d.result.Situations {
		err := n.situations.Store(ctx, situation)
		if err != nil {
			n.logger.Error("Failed to store situation",
				"situationId", situation.ID,
				"processorId", d.processor.ID(),
				"error", err,
			)

			// A situation that cannot be persisted is a lost delivery and is
			// reported like one.
			n.failures.ReportFailure(ctx, DeliveryFailure{
				Subject:      d.subject,
				PartitionKey: d.events.PartitionKey,
				ProcessorID:  d.processor.ID(),
				Attempts:     1,
				Err:          err,
			})
		}
	}
}

func (n *Network) handleFailure(ctx context.Context, failure DeliveryFailure) {
	n.failures.ReportFailure(ctx, failure)
}

func validateEventList(events *models.EventList) error {
	if events == nil || events.Len() == 0 {
		return ErrEmptyEventList
	}

	if events.PartitionKey == "" {
		return fmt.Errorf("%w: missing partition key", ErrPartitionKeyMismatch)
	}

	for _, event := range events.Events {
		if len(event.Correlation) > 0 && !slices.Contains(event.Correlation, events.PartitionKey) {
			return fmt.Errorf("%w: event %s not correlated with key %s",
				ErrPartitionKeyMismatch, event.ID, events.PartitionKey)
		}
	}

	return nil
}

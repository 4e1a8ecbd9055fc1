package epn

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/epnlabs/sitrep/pkg/models"
)

// delivery is one event list bound for one processor.
type delivery struct {
	subject   string
	processor Processor
	events    *models.EventList
	result    *Result
}

type queueKey struct {
	processorID  string
	partitionKey string
}

// deliveryHandler is the dispatcher's view of the network: a single
// invocation attempt, result fan-out, and failure reporting.
type deliveryHandler interface {
	handleDelivery(ctx context.Context, d *delivery) error
	handleResult(d *delivery)
	handleFailure(ctx context.Context, failure DeliveryFailure)
}

// queue is one virtual per-(processor, key) delivery queue. size counts
// queued items plus senders that reserved a slot but have not completed
// their send, so the drain goroutine retires the queue only when no
// delivery can still arrive on its channel.
type queue struct {
	ch   chan *delivery
	size int
}

// dispatcher owns the per-(processor, key) virtual queues. Each live queue
// is drained by its own goroutine, which gives FIFO ordering and exclusive
// state access per key while distinct keys and processors run in parallel.
// A queue that runs dry is retired together with its goroutine and
// recreated on the next delivery for its key, so idle keys hold no
// resources and queue count tracks in-flight keys, not total keys seen.
// No lock is held while a processor runs.
type dispatcher struct {
	cfg     Config
	handler deliveryHandler

	mu     sync.Mutex
	queues map[queueKey]*queue
	closed chan struct{}
	wg     sync.WaitGroup
}

func newDispatcher(cfg Config, handler deliveryHandler) *dispatcher {
	return &dispatcher{
		cfg:     cfg,
		handler: handler,
		queues:  make(map[queueKey]*queue),
		closed:  make(chan struct{}),
	}
}

// enqueue places a delivery on its queue, honouring the overflow policy.
func (dsp *dispatcher) enqueue(ctx context.Context, d *delivery) error {
	key := queueKey{
		processorID:  d.processor.ID(),
		partitionKey: d.events.PartitionKey,
	}

	dsp.mu.Lock()

	select {
	case <-dsp.closed:
		dsp.mu.Unlock()

		return ErrNetworkClosed
	default:
	}

	q, ok := dsp.queues[key]
	if !ok {
		q = &queue{ch: make(chan *delivery, dsp.cfg.QueueDepth)}
		dsp.queues[key] = q

		dsp.wg.Add(1)

		go dsp.drain(key, q)
	}

	if dsp.cfg.Overflow == OverflowReject && q.size >= dsp.cfg.QueueDepth {
		dsp.mu.Unlock()

		return ErrQueueFull
	}

	q.size++
	dsp.mu.Unlock()

	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		dsp.release(q)

		return ctx.Err()
	case <-dsp.closed:
		dsp.release(q)

		return ErrNetworkClosed
	}
}

// release gives back a reserved queue slot, after a received delivery or an
// abandoned send.
func (dsp *dispatcher) release(q *queue) {
	dsp.mu.Lock()
	q.size--
	dsp.mu.Unlock()
}

// drain serializes all deliveries for one (processor, key) pair, retiring
// the queue once it runs dry. Retirement and slot reservation take the same
// lock, so a queue observed at size zero can have no sender still bound for
// its channel.
func (dsp *dispatcher) drain(key queueKey, q *queue) {
	defer dsp.wg.Done()

	for {
		select {
		case d := <-q.ch:
			dsp.release(q)
			dsp.run(d)

			dsp.mu.Lock()
			if q.size == 0 {
				delete(dsp.queues, key)
				dsp.mu.Unlock()

				return
			}
			dsp.mu.Unlock()
		case <-dsp.closed:
			return
		}
	}
}

// run executes a delivery with bounded retry and backoff. Transient failures
// are retried with the same event list; anything else, or retry exhaustion,
// goes to the failure sink and the queue moves on to its next delivery.
func (dsp *dispatcher) run(d *delivery) {
	ctx := context.Background()
	attempts := 0

	operation := func() error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, dsp.cfg.ProcessTimeout)
		defer cancel()

		err := dsp.handler.handleDelivery(attemptCtx, d)
		if err == nil {
			return nil
		}

		if IsTransient(err) {
			return err
		}

		return backoff.Permanent(err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = dsp.cfg.InitialBackoff
	expo.MaxInterval = dsp.cfg.MaxBackoff
	expo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithMaxRetries(expo, dsp.cfg.MaxRetries))
	if err != nil {
		dsp.handler.handleFailure(ctx, DeliveryFailure{
			Subject:      d.subject,
			PartitionKey: d.events.PartitionKey,
			ProcessorID:  d.processor.ID(),
			Attempts:     attempts,
			Err:          err,
		})

		return
	}

	dsp.handler.handleResult(d)
}

// close stops all queue goroutines. Queued deliveries that have not started
// are discarded.
func (dsp *dispatcher) close() {
	dsp.mu.Lock()

	select {
	case <-dsp.closed:
		dsp.mu.Unlock()

		return
	default:
		close(dsp.closed)
	}

	dsp.mu.Unlock()

	dsp.wg.Wait()
}

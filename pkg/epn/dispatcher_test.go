package epn

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epnlabs/sitrep/pkg/epn/state"
	"github.com/epnlabs/sitrep/pkg/models"
)

type noopProcessor struct{}

func (noopProcessor) ID() string { return "noop" }

func (noopProcessor) Process(context.Context, *state.Handle, *models.EventList) (*Result, error) {
	return &Result{}, nil
}

// countingHandler completes every delivery immediately.
type countingHandler struct {
	mu    sync.Mutex
	count int
}

func (h *countingHandler) handleDelivery(context.Context, *delivery) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++

	return nil
}

func (h *countingHandler) handleResult(*delivery) {}

func (h *countingHandler) handleFailure(context.Context, DeliveryFailure) {}

func (h *countingHandler) handled() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.count
}

func deliveryFor(t *testing.T, key string) *delivery {
	t.Helper()

	event := models.NewActivityEvent("request")
	event.Correlation = []string{key}

	list, err := models.NewEventList(key, *event)
	require.NoError(t, err)

	return &delivery{subject: "activities", processor: noopProcessor{}, events: list}
}

func (dsp *dispatcher) liveQueues() int {
	dsp.mu.Lock()
	defer dsp.mu.Unlock()

	return len(dsp.queues)
}

func TestDispatcher_RetiresIdleQueues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	handler := &countingHandler{}
	dsp := newDispatcher(DefaultConfig(), handler)
	defer dsp.close()

	const keys = 200

	for i := range keys {
		require.NoError(t, dsp.enqueue(ctx, deliveryFor(t, fmt.Sprintf("key-%d", i))))
	}

	require.Eventually(t, func() bool {
		return handler.handled() == keys
	}, time.Second, 5*time.Millisecond)

	// Drained queues are released together with their goroutines; the queue
	// count tracks in-flight keys, not every key ever seen.
	require.Eventually(t, func() bool {
		return dsp.liveQueues() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_RetiredKeyIsServedAgain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	handler := &countingHandler{}
	dsp := newDispatcher(DefaultConfig(), handler)
	defer dsp.close()

	require.NoError(t, dsp.enqueue(ctx, deliveryFor(t, "key-0")))

	require.Eventually(t, func() bool {
		return handler.handled() == 1 && dsp.liveQueues() == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, dsp.enqueue(ctx, deliveryFor(t, "key-0")))

	require.Eventually(t, func() bool {
		return handler.handled() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	defaults := DefaultConfig()

	assert.Equal(t, defaults.QueueDepth, cfg.QueueDepth)
	assert.Equal(t, defaults.InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, defaults.MaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, defaults.ProcessTimeout, cfg.ProcessTimeout)
	assert.Equal(t, defaults.Overflow, cfg.Overflow)

	// Zero retries is a valid setting and is not overridden.
	assert.Zero(t, cfg.MaxRetries)
}

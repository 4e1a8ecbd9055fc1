package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epnlabs/sitrep/pkg/channels/gochannel"
	"github.com/epnlabs/sitrep/pkg/eventbus"
	"github.com/epnlabs/sitrep/pkg/models"
)

func newTestBus(t *testing.T) *eventbus.WatermillActivityBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillActivityBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestActivityBus_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	var (
		mu       sync.Mutex
		received [][]*models.ActivityEvent
	)

	err := bus.Subscribe(ctx, func(_ context.Context, events []*models.ActivityEvent) error {
		mu.Lock()
		defer mu.Unlock()

		received = append(received, events)

		return nil
	})
	require.NoError(t, err)

	first := models.NewActivityEvent("request")
	first.Correlation = []string{"conv-1"}

	second := models.NewActivityEvent("response")
	second.Correlation = []string{"conv-1"}

	require.NoError(t, bus.Publish(ctx, first, second))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	batch := received[0]
	require.Len(t, batch, 2)
	assert.Equal(t, first.ID, batch[0].ID)
	assert.Equal(t, "request", batch[0].Type)
	assert.Equal(t, []string{"conv-1"}, batch[0].Correlation)
	assert.Equal(t, second.ID, batch[1].ID)
}

func TestActivityBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}

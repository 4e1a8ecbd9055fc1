// Package cmd wires concrete backends for the binaries from connection URLs.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/epnlabs/sitrep/pkg/channels/gochannel"
	"github.com/epnlabs/sitrep/pkg/channels/kafka"
	"github.com/epnlabs/sitrep/pkg/epn/state"
	"github.com/epnlabs/sitrep/pkg/eventbus"
	"github.com/epnlabs/sitrep/pkg/situations"
	"github.com/epnlabs/sitrep/pkg/situations/memory"
	"github.com/epnlabs/sitrep/pkg/situations/postgresql"
)

// NewActivityBus creates the activity transport for the given provider.
func NewActivityBus(provider string, logger *slog.Logger) eventbus.ActivityBus {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, "sitrep")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillActivityBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillActivityBus(pub, sub)
	default:
		panic("Unsupported activity bus provider: " + provider)
	}
}

// NewSituationStore creates a situation store from a database URL. A
// postgres:// URL selects PostgreSQL; anything else falls back to the
// in-memory store.
func NewSituationStore(ctx context.Context, logger *slog.Logger, databaseURL string) situations.Store {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		store, err := postgresql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL situation store: %w", err))
		}

		return store
	}

	return memory.NewStore(logger)
}

// NewStateStore creates the processor state store. A redis:// URL selects
// Redis; empty falls back to in-memory state.
func NewStateStore(ctx context.Context, stateURL string, ttl time.Duration) state.Store {
	if strings.HasPrefix(stateURL, "redis://") || strings.HasPrefix(stateURL, "rediss://") {
		store, err := state.NewRedisStore(ctx, stateURL, ttl)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis state store: %w", err))
		}

		return store
	}

	return state.NewMemoryStore()
}

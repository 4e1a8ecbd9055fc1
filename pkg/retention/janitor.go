// Package retention deletes aged resolved situations on a schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/situations"
)

// Config tunes the retention sweep.
type Config struct {
	// Schedule is a cron expression; defaults to hourly.
	Schedule string

	// MaxAge is how long resolved situations are kept.
	MaxAge time.Duration

	// AllStates deletes aged situations regardless of resolution state.
	// Default keeps unresolved situations forever.
	AllStates bool
}

// Janitor runs scheduled bulk deletes against the situation store.
type Janitor struct {
	cfg    Config
	store  situations.Store
	logger *slog.Logger
	cron   *cron.Cron
}

// NewJanitor creates a janitor; Start schedules it.
func NewJanitor(cfg Config, store situations.Store, logger *slog.Logger) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}

	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("retention requires a positive max age")
	}

	return &Janitor{
		cfg:    cfg,
		store:  store,
		logger: logger,
		cron:   cron.New(),
	}, nil
}

// Start registers the sweep with the scheduler and starts it.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		j.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	j.cron.Start()

	j.logger.Info("Retention janitor started", "schedule", j.cfg.Schedule, "maxAge", j.cfg.MaxAge)

	return nil
}

// Sweep deletes situations older than the retention cutoff once.
func (j *Janitor) Sweep(ctx context.Context) {
	query := &situations.Query{
		To: time.Now().Add(-j.cfg.MaxAge),
	}

	if !j.cfg.AllStates {
		query.ResolutionState = models.ResolutionResolved
	}

	deleted, err := j.store.DeleteMatching(ctx, query)
	if err != nil {
		j.logger.Error("Retention sweep failed", "error", err)

		return
	}

	if deleted > 0 {
		j.logger.Info("Retention sweep removed situations", "count", deleted)
	}
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

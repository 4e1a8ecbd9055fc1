package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/epnlabs/sitrep/pkg/cmd"
	"github.com/epnlabs/sitrep/pkg/epn"
	"github.com/epnlabs/sitrep/pkg/eventbus"
	"github.com/epnlabs/sitrep/pkg/ingestion"
	"github.com/epnlabs/sitrep/pkg/models"
	"github.com/epnlabs/sitrep/pkg/nodes/responsetime"
	"github.com/epnlabs/sitrep/pkg/nodes/threshold"
	"github.com/epnlabs/sitrep/pkg/retention"
	"github.com/epnlabs/sitrep/pkg/situations"
	"github.com/epnlabs/sitrep/pkg/validation"
)

// Engine assembles the processing network, its built-in detections, the
// ingestion path, and optional retention, and runs until shutdown.
type Engine struct {
	id      string
	command *cli.Command
	store   situations.Store
	bus     eventbus.ActivityBus
	logger  *slog.Logger
}

func NewEngine(
	id string,
	command *cli.Command,
	store situations.Store,
	bus eventbus.ActivityBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		id:      id,
		command: command,
		store:   store,
		bus:     bus,
		logger:  logger,
	}
}

func (e *Engine) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateStore := cmd.NewStateStore(ctx, e.command.String("state-url"), 0)

	network := epn.NewNetwork(
		epn.Config{
			QueueDepth:     int(e.command.Int("queue-depth")),
			MaxRetries:     uint64(e.command.Uint("max-retries")),
			ProcessTimeout: e.command.Duration("process-timeout"),
			Overflow:       epn.OverflowPolicy(e.command.String("overflow")),
		},
		e.logger,
		stateStore,
		e.store,
		nil,
	)
	defer func() {
		err := network.Close(context.Background())
		if err != nil {
			e.logger.Error("Failed to close network", "error", err)
		}
	}()

	subject := e.command.String("subject")

	err := e.registerDetections(network, subject)
	if err != nil {
		return err
	}

	collector := ingestion.NewCollector(
		subject,
		"conversationId",
		validation.NewStructValidator(),
		network,
		e.logger,
	)

	err = e.bus.Subscribe(ctx, func(ctx context.Context, events []*models.ActivityEvent) error {
		_, err := collector.Submit(ctx, events...)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to activity bus: %w", err)
	}

	if maxAge := e.command.Duration("retention-max-age"); maxAge > 0 {
		janitor, err := retention.NewJanitor(retention.Config{MaxAge: maxAge}, e.store, e.logger)
		if err != nil {
			return err
		}

		err = janitor.Start(ctx)
		if err != nil {
			return err
		}

		defer janitor.Stop()
	}

	e.logger.InfoContext(ctx, "Engine started", "subject", subject)

	<-ctx.Done()

	e.logger.Info("Shutting down engine")

	return nil
}

// registerDetections wires the built-in processors onto the root subject.
func (e *Engine) registerDetections(network *epn.Network, subject string) error {
	responseNode, err := responsetime.NewNode("response-time", responsetime.Config{
		RequestType:  "request",
		ResponseType: "response",
		Threshold:    e.command.Duration("response-threshold"),
		Severity:     models.SeverityHigh,
	})
	if err != nil {
		return err
	}

	faultNode, err := threshold.NewNode("fault-rate", threshold.Config{
		EventType:     "fault",
		Limit:         int(e.command.Int("fault-limit")),
		Window:        e.command.Duration("fault-window"),
		SituationType: "SLAViolation",
		Severity:      models.SeverityCritical,
	})
	if err != nil {
		return err
	}

	network.RegisterProcessor(subject, responseNode)
	network.RegisterProcessor(subject, faultNode)

	return nil
}

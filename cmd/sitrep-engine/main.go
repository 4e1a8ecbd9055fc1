package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/epnlabs/sitrep/pkg/cmd"
	"github.com/epnlabs/sitrep/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "sitrep-engine",
		EnableShellCompletion: true,
		Usage:                 "Run the event processing network over inbound activity events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Situation store URL (postgres://... or memory)",
				Value:   "memory",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Activity bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "state-url",
				Usage:   "Processor state store URL (redis://... or empty for in-memory)",
				Value:   "",
				Sources: cli.EnvVars("STATE_URL"),
			},
			&cli.StringFlag{
				Name:    "subject",
				Usage:   "Root subject inbound activity events are published on",
				Value:   "activities",
				Sources: cli.EnvVars("ROOT_SUBJECT"),
			},
			&cli.IntFlag{
				Name:    "queue-depth",
				Usage:   "Per-processor delivery queue depth",
				Value:   64,
				Sources: cli.EnvVars("QUEUE_DEPTH"),
			},
			&cli.UintFlag{
				Name:    "max-retries",
				Usage:   "Retries per delivery after a transient processor failure",
				Value:   3,
				Sources: cli.EnvVars("MAX_RETRIES"),
			},
			&cli.DurationFlag{
				Name:    "process-timeout",
				Usage:   "Time budget for a single processor invocation",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("PROCESS_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "overflow",
				Usage:   "Backpressure policy when a delivery queue is full (block, reject)",
				Value:   "block",
				Sources: cli.EnvVars("OVERFLOW_POLICY"),
			},
			&cli.DurationFlag{
				Name:    "response-threshold",
				Usage:   "Request/response duration above which a situation is raised",
				Value:   time.Second,
				Sources: cli.EnvVars("RESPONSE_THRESHOLD"),
			},
			&cli.IntFlag{
				Name:    "fault-limit",
				Usage:   "Fault events per window that raise an SLA violation",
				Value:   5,
				Sources: cli.EnvVars("FAULT_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "fault-window",
				Usage:   "Sliding window width for fault counting",
				Value:   time.Minute,
				Sources: cli.EnvVars("FAULT_WINDOW"),
			},
			&cli.DurationFlag{
				Name:    "retention-max-age",
				Usage:   "Age after which resolved situations are deleted (0 disables retention)",
				Value:   0,
				Sources: cli.EnvVars("RETENTION_MAX_AGE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("sitrep-engine").With("engineId", engineID)

			logger.InfoContext(ctx, "Initializing sitrep engine")

			store := cmd.NewSituationStore(ctx, logger, command.String("database-url"))
			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close situation store", "error", err)
				}
			}()

			bus := cmd.NewActivityBus(command.String("event-bus"), logger)
			defer func() {
				err := bus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close activity bus", "error", err)
				}
			}()

			engine := NewEngine(engineID, command, store, bus, logger)

			err := engine.Run(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Engine stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

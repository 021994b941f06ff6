package main

import (
	"context"
	"os"

	"github.com/Stefan/orka-ppm-sub007/pkg/cmd"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/log"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "approvals-worker",
		EnableShellCompletion: true,
		Usage:                 "Start approval workflows from domain events and escalate overdue steps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file://dir, postgres://..., badger://dir)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for trigger deduplication; in-memory when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "directory-file",
				Usage:   "YAML file with users, roles and approval limits",
				Sources: cli.EnvVars("DIRECTORY_FILE"),
			},
			&cli.FloatFlag{
				Name:    "budget-threshold-percent",
				Usage:   "Budget variance percentage that starts a budget approval",
				Value:   10,
				Sources: cli.EnvVars("BUDGET_THRESHOLD_PERCENT"),
			},
			&cli.StringFlag{
				Name:    "sla-schedule",
				Usage:   "Cron schedule of the step timeout sweep",
				Value:   engine.DefaultSLASchedule,
				Sources: cli.EnvVars("SLA_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), "text")

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("approvals-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing approvals worker")

			if command.Bool("otel") {
				shutdown, err := otelhelper.Setup(ctx, "approvals-worker")
				if err != nil {
					return err
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
					}
				}()
			}

			components, err := cmd.NewComponents(ctx, logger, cmd.Options{
				ServiceName:            "approvals-worker",
				DatabaseURL:            command.String("database-url"),
				EventBus:               command.String("event-bus"),
				KafkaBrokers:           command.StringSlice("kafka-brokers"),
				RedisURL:               command.String("redis-url"),
				DirectoryFile:          command.String("directory-file"),
				BudgetThresholdPercent: command.Float("budget-threshold-percent"),
			})
			if err != nil {
				return err
			}

			defer func() {
				_ = components.Close(context.WithoutCancel(ctx))
			}()

			worker, err := NewWorker(workerID, components, command.String("sla-schedule"), logger)
			if err != nil {
				return err
			}

			return worker.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("approvals-worker").Error("approvals-worker stopped", "error", err)
		os.Exit(1)
	}
}

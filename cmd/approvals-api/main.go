package main

import (
	"context"
	"os"

	"github.com/Stefan/orka-ppm-sub007/pkg/cmd"
	"github.com/Stefan/orka-ppm-sub007/pkg/log"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("approvals-api")

	command := &cli.Command{
		Name:                  "approvals-api",
		Usage:                 "Manage approval workflows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Value:   "gochannel",
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

			logger.InfoContext(ctx, "Initializing approvals API")

			if command.Bool("otel") {
				shutdown, err := otelhelper.Setup(ctx, "approvals-api")
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
				ServiceName:            "approvals-api",
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

			return NewAPI(logger, components).Start(int(command.Int("port")))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("approvals-api stopped", "error", err)
		os.Exit(1)
	}
}

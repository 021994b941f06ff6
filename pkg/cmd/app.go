package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Stefan/orka-ppm-sub007/pkg/authority"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/Stefan/orka-ppm-sub007/pkg/services"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/triggers"
	"github.com/Stefan/orka-ppm-sub007/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
)

// Options selects the backends shared by the binaries.
type Options struct {
	ServiceName            string
	DatabaseURL            string
	EventBus               string
	KafkaBrokers           []string
	RedisURL               string
	DirectoryFile          string
	BudgetThresholdPercent float64
	// Registry receives the recovery counters. Nil uses a fresh registry.
	Registry *prometheus.Registry
}

// Components is the wired approval engine with its stores and integrations.
type Components struct {
	Persistence persistence.Persistence
	Directory   rbac.Directory
	EventBus    eventbus.EventBus
	Registry    *prometheus.Registry
	Recovery    *recovery.Handler
	Engine      *engine.Engine
	Templates   *templates.Registry
	Definitions *services.Definitions
	Authority   *authority.Checker
	Triggers    *triggers.Integrator

	closers []func(context.Context) error
	logger  *slog.Logger
}

// NewComponents opens every backend named by opts and wires the engine to them.
// Notifications, recovery records and completions are published on the event bus.
func NewComponents(ctx context.Context, logger *slog.Logger, opts Options) (*Components, error) {
	c := &Components{Registry: opts.Registry, logger: logger}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}

	var err error

	c.Persistence, err = NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	c.closers = append(c.closers, c.Persistence.Close)

	directory, err := NewDirectory(logger, opts.DirectoryFile)
	if err != nil {
		return nil, c.abort(ctx, err)
	}

	c.Directory = directory

	c.EventBus, err = NewEventBus(opts.EventBus, opts.KafkaBrokers, opts.ServiceName, logger)
	if err != nil {
		return nil, c.abort(ctx, err)
	}

	c.closers = append(c.closers, func(context.Context) error { return c.EventBus.Close() })

	dedup, closeDedup, err := NewDedupStore(ctx, logger, opts.RedisURL)
	if err != nil {
		return nil, c.abort(ctx, err)
	}

	c.closers = append(c.closers, func(context.Context) error { return closeDedup() })

	notifier := notify.MultiSink{notify.NewLogSink(logger), notify.NewBusSink(c.EventBus, logger)}
	c.Recovery = recovery.NewHandler(recovery.DefaultConfig(),
		recovery.NewBusAuditSink(c.EventBus), notifier, c.Registry, logger)
	c.Engine = engine.New(engine.DefaultConfig(), c.Persistence, c.Directory, c.Recovery, notifier, logger).
		WithPublisher(c.EventBus)

	c.Templates = templates.NewRegistry(logger)
	c.Definitions = services.NewDefinitions(c.Persistence,
		validation.NewValidator(c.Directory, logger), c.Templates, logger)
	c.Authority = authority.NewChecker(c.Directory, logger)

	config := triggers.DefaultConfig()
	if opts.BudgetThresholdPercent > 0 {
		config.BudgetThresholdPercent = opts.BudgetThresholdPercent
	}

	c.Triggers = triggers.NewIntegrator(config, c.Engine, c.Definitions, dedup, logger)

	return c, nil
}

func (c *Components) abort(ctx context.Context, err error) error {
	return errors.Join(err, c.Close(ctx))
}

// Close releases the backends in reverse opening order.
func (c *Components) Close(ctx context.Context) error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		err := c.closers[i](ctx)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to close component", "error", err)
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}

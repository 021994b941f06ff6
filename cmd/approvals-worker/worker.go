// Package main provides the approvals worker: it turns domain events from the bus into
// workflow instances and escalates approval steps that outlive their SLA.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Stefan/orka-ppm-sub007/pkg/cmd"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
)

type Worker struct {
	id         string
	components *cmd.Components
	sweeper    *engine.SLASweeper
	logger     *slog.Logger
}

func NewWorker(id string, components *cmd.Components, slaSchedule string, logger *slog.Logger) (*Worker, error) {
	logger = logger.With("module", "approvals-worker", "worker_id", id)

	sweeper, err := engine.NewSLASweeper(components.Engine, slaSchedule, logger)
	if err != nil {
		return nil, err
	}

	return &Worker{
		id:         id,
		components: components,
		sweeper:    sweeper,
		logger:     logger,
	}, nil
}

// Start runs the worker until ctx is done or the process receives SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	err := w.start(ctx)
	if err != nil {
		return err
	}

	defer w.stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *Worker) start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	bus := w.components.EventBus

	err := w.components.Triggers.Register(bus)
	if err != nil {
		return err
	}

	err = bus.Handle(events.InstanceCompletedEvent, w.handleInstanceCompleted)
	if err != nil {
		return fmt.Errorf("failed to register completion handler: %w", err)
	}

	err = bus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.sweeper.Start(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

func (w *Worker) stop() {
	w.sweeper.Stop()
}

func (w *Worker) handleInstanceCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.InstanceCompleted)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for InstanceCompleted")

		return nil
	}

	w.logger.InfoContext(ctx, "Workflow instance completed",
		"instance_id", completed.InstanceID,
		"definition_id", completed.DefinitionID,
		"entity_type", completed.EntityType,
		"entity_id", completed.EntityID,
		"status", completed.Status)

	return nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultSLASchedule runs the sweep every five minutes.
const DefaultSLASchedule = "*/5 * * * *"

// CheckTimeouts raises a timeout incident for every active step older than its
// timeoutHours that was not escalated yet, and returns how many were raised. The
// recovery handler escalates them.
func (e *Engine) CheckTimeouts(ctx context.Context) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.check_timeouts")
	defer span.End()

	instances, err := fetch(ctx, e, requestScope("list_in_progress", ""), "list_in_progress", func(ctx context.Context) ([]*models.WorkflowInstance, error) {
		return e.persistence.InstanceRepository().ListByStatus(ctx, models.InstanceStatusInProgress)
	})
	if err != nil {
		return 0, e.fail(ctx, span, "check_timeouts", "", err)
	}

	definitions := make(map[string]*models.WorkflowDefinition)
	now := e.now()
	raised := 0

	for _, instance := range instances {
		definition, ok := definitions[instance.DefinitionID]
		if !ok {
			definition, err = e.loadDefinition(ctx, instance.ID, instance.DefinitionID)
			if err != nil {
				e.logger.WarnContext(ctx, "Skipping instance in timeout sweep",
					"instance_id", instance.ID,
					"error", err)

				continue
			}

			definitions[instance.DefinitionID] = definition
		}

		for _, state := range overdue(definition, instance, now) {
			step := definition.StepByOrder(state.Order)

			e.recovery.HandleError(ctx, recovery.Incident{
				Err: recovery.Wrap(recovery.CategoryTimeout, "check_timeouts",
					fmt.Errorf("%w: step %d of instance %s after %d hours", ErrStepTimedOut, state.Order, instance.ID, *step.TimeoutHours)),
				InstanceID: instance.ID,
				Operation:  "check_timeouts",
				Context: map[string]any{
					"step_order":    state.Order,
					"timeout_hours": *step.TimeoutHours,
				},
			})

			raised++
		}
	}

	span.SetAttributes(attribute.Int("approvals.timeouts.raised", raised))

	return raised, nil
}

func overdue(definition *models.WorkflowDefinition, instance *models.WorkflowInstance, now time.Time) []*models.StepState {
	out := make([]*models.StepState, 0)

	for _, state := range instance.Steps {
		if state.Outcome != models.StepOutcomePending || state.Escalated || state.ActivatedAt == nil {
			continue
		}

		step := definition.StepByOrder(state.Order)
		if step == nil || step.TimeoutHours == nil {
			continue
		}

		deadline := state.ActivatedAt.Add(time.Duration(*step.TimeoutHours) * time.Hour)
		if now.After(deadline) {
			out = append(out, state)
		}
	}

	return out
}

// SLASweeper runs CheckTimeouts on a cron schedule.
type SLASweeper struct {
	engine   *Engine
	schedule string
	cron     *cron.Cron
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewSLASweeper validates the standard five-field cron schedule.
func NewSLASweeper(engine *Engine, schedule string, logger *slog.Logger) (*SLASweeper, error) {
	if schedule == "" {
		schedule = DefaultSLASchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA schedule '%s': %w", schedule, err)
	}

	return &SLASweeper{
		engine:   engine,
		schedule: schedule,
		logger:   logger.With("module", "sla_sweeper"),
	}, nil
}

func (s *SLASweeper) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron != nil {
		return errors.New("SLA sweeper already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add SLA sweep job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("SLA sweeper started", "schedule", s.schedule)

	return nil
}

func (s *SLASweeper) sweep() {
	raised, err := s.engine.CheckTimeouts(s.ctx)
	if err != nil {
		s.logger.Error("SLA sweep failed", "error", err)

		return
	}

	if raised > 0 {
		s.logger.Info("SLA sweep escalated steps", "count", raised)
	}
}

func (s *SLASweeper) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("SLA sweeper stopped")
	}
}

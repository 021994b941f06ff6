// Package engine runs approval workflow instances: it materializes approval slots as
// steps activate, applies decisions under a per-instance lock and resolves instances once
// their steps are satisfied or fail.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/authority"
	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// SystemActor decides approvals that auto-approve.
const SystemActor = "system"

type Config struct {
	// StoreTimeout bounds every persistence call. Zero leaves calls bounded only by the
	// caller's context.
	StoreTimeout time.Duration
	// StoreRetryBackoff is the wait before the first store retry; it doubles on every
	// further attempt. Zero retries immediately.
	StoreRetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{StoreTimeout: 5 * time.Second, StoreRetryBackoff: 100 * time.Millisecond}
}

type Engine struct {
	config      Config
	persistence persistence.Persistence
	directory   rbac.Directory
	authority   *authority.Checker
	recovery    *recovery.Handler
	notifier    notify.Sink
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	locks       *instanceLocks
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

// New creates an engine and binds it as the instance controller of the recovery handler.
// notifier may be nil.
func New(
	config Config,
	p persistence.Persistence,
	directory rbac.Directory,
	handler *recovery.Handler,
	notifier notify.Sink,
	logger *slog.Logger,
) *Engine {
	if notifier == nil {
		notifier = notify.NewLogSink(logger)
	}

	e := &Engine{
		config:      config,
		persistence: p,
		directory:   directory,
		authority:   authority.NewChecker(directory, logger),
		recovery:    handler,
		notifier:    notifier,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		locks:       newInstanceLocks(),
		tracer:      otelhelper.Tracer(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("module", "engine"),
	}

	handler.Bind(e)

	return e
}

// WithPublisher publishes instance.completed events when instances resolve.
func (e *Engine) WithPublisher(publisher eventbus.EventPublisher) *Engine {
	e.publisher = publisher

	return e
}

// WithClock replaces the UTC wall clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = func() time.Time { return now().UTC() }

	return e
}

// WithTracer replaces the tracer of the global provider.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer

	return e
}

// fail routes err through the recovery handler unless it was handled already. It must be
// called without holding an instance lock.
func (e *Engine) fail(ctx context.Context, span trace.Span, op, instanceID string, err error) error {
	otelhelper.SetCategorizedError(span, err, string(recovery.CategoryOf(err)))

	var handled *handledError
	if errors.As(err, &handled) {
		return handled.err
	}

	e.recovery.HandleError(ctx, recovery.Incident{
		Err:        err,
		InstanceID: instanceID,
		Operation:  op,
		Rejected:   refused(err),
	})

	return err
}

// storeScope names the instance a store call belongs to and the key of the retry budget
// it spends.
type storeScope struct {
	instanceID string
	key        string
}

func instanceScope(instanceID string) storeScope {
	return storeScope{instanceID: instanceID, key: instanceID}
}

// requestScope is for calls made before any instance is known. Each subject gets its own
// retry budget.
func requestScope(op, subject string) storeScope {
	return storeScope{key: op + ":" + subject}
}

// withStore runs fn until it succeeds or the recovery handler stops answering retry.
// Not-found errors are returned as validation failures without retrying.
func (e *Engine) withStore(ctx context.Context, scope storeScope, op string, fn func(context.Context) error) error {
	for {
		err := e.callStore(ctx, fn)
		if err == nil {
			e.recovery.Reset(recovery.CategoryDatabase, scope.key)

			return nil
		}

		if persistence.IsNotFound(err) {
			return recovery.Wrap(recovery.CategoryValidation, op, err)
		}

		category := recovery.CategoryDatabase
		if errors.Is(err, context.DeadlineExceeded) {
			category = recovery.CategoryTimeout
		}

		wrapped := recovery.Wrap(category, op, err)

		// The failed call changed nothing, so no instance remediation applies here. This
		// also keeps the handler from re-entering a lock the caller may hold.
		response := e.recovery.HandleError(ctx, recovery.Incident{
			Err:        wrapped,
			InstanceID: scope.instanceID,
			AttemptKey: scope.key,
			Operation:  op,
			Rejected:   true,
		})
		if response.Action != recovery.ActionRetry || ctx.Err() != nil {
			return &handledError{err: wrapped}
		}

		e.logger.DebugContext(ctx, "Retrying store operation",
			"operation", op,
			"instance_id", scope.instanceID,
			"attempt", response.Attempt+1)

		if !e.backoff(ctx, response.Attempt) {
			return &handledError{err: wrapped}
		}
	}
}

// backoff waits before retry number attempt+1 and reports false when ctx ends first.
func (e *Engine) backoff(ctx context.Context, attempt int) bool {
	if e.config.StoreRetryBackoff <= 0 {
		return true
	}

	timer := time.NewTimer(e.config.StoreRetryBackoff << attempt)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) callStore(ctx context.Context, fn func(context.Context) error) error {
	if e.config.StoreTimeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	return fn(ctx)
}

// fetch is withStore for calls returning a value.
func fetch[T any](ctx context.Context, e *Engine, scope storeScope, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T

	err := e.withStore(ctx, scope, op, func(ctx context.Context) error {
		var err error

		out, err = fn(ctx)

		return err
	})

	return out, err
}

func (e *Engine) loadDefinition(ctx context.Context, instanceID, id string) (*models.WorkflowDefinition, error) {
	return fetch(ctx, e, instanceScope(instanceID), "load_definition", func(ctx context.Context) (*models.WorkflowDefinition, error) {
		return e.persistence.DefinitionRepository().GetByID(ctx, id)
	})
}

func (e *Engine) loadInstance(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	return fetch(ctx, e, instanceScope(id), "load_instance", func(ctx context.Context) (*models.WorkflowInstance, error) {
		return e.persistence.InstanceRepository().GetByID(ctx, id)
	})
}

func (e *Engine) loadApprovals(ctx context.Context, instanceID string) ([]*models.Approval, error) {
	return fetch(ctx, e, instanceScope(instanceID), "load_approvals", func(ctx context.Context) ([]*models.Approval, error) {
		return e.persistence.ApprovalRepository().ListByInstance(ctx, instanceID)
	})
}

// save stores the instance together with the approvals the transition changed, in one
// atomic write.
func (e *Engine) save(ctx context.Context, t *transition) error {
	approvals := t.changedApprovals()

	return e.withStore(ctx, instanceScope(t.instance.ID), "save_state", func(ctx context.Context) error {
		return e.persistence.SaveInstanceState(ctx, t.instance, approvals)
	})
}

// emit delivers the intents and completion event gathered by a committed transition.
func (e *Engine) emit(ctx context.Context, t *transition) {
	for _, intent := range t.intents {
		e.notifier.Notify(ctx, intent)
	}

	if !t.completed || e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, t.instance.ID, events.InstanceCompleted{
		ID:           uuid.NewString(),
		Timestamp:    e.now(),
		InstanceID:   t.instance.ID,
		DefinitionID: t.instance.DefinitionID,
		EntityType:   t.instance.EntityType,
		EntityID:     t.instance.EntityID,
		Status:       string(t.instance.Status),
	})
	if err != nil {
		e.recovery.HandleError(ctx, recovery.Incident{
			Err:        recovery.Wrap(recovery.CategoryNotification, "publish_completion", errors.Join(ErrPublishFailed, err)),
			InstanceID: t.instance.ID,
			Operation:  "publish_completion",
			Rejected:   true,
		})
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// InstanceController applies instance-scoped remediation. Implementations must not call
// back into HandleError.
type InstanceController interface {
	SuspendForRecovery(ctx context.Context, instanceID, reason string, rollback bool) error
	Escalate(ctx context.Context, instanceID string, details map[string]any) error
}

// Incident describes one failure handed to the handler.
type Incident struct {
	Err error
	// Category and Severity override the classification of Err when set.
	Category   Category
	Severity   Severity
	InstanceID string
	// AttemptKey scopes the retry counter. Empty uses InstanceID.
	AttemptKey string
	Operation  string
	// Rejected marks a request refused before any instance state changed. The failure is
	// recorded and counted but instance remediation is skipped.
	Rejected bool
	Context  map[string]any
}

// Response is the outcome of handling one incident.
type Response struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Action   Action   `json:"action"`
	Attempt  int      `json:"attempt"`
	Message  string   `json:"message"`
}

type Config struct {
	RingSize int
}

func DefaultConfig() Config {
	return Config{RingSize: 1000}
}

type attemptKey struct {
	category Category
	key      string
}

type Handler struct {
	config     Config
	mu         sync.Mutex
	attempts   map[attemptKey]int
	ring       *ring
	audit      AuditSink
	notifier   notify.Sink
	controller InstanceController
	metrics    *Metrics
	logger     *slog.Logger
}

// NewHandler creates a recovery handler. audit and notifier may be nil.
func NewHandler(config Config, audit AuditSink, notifier notify.Sink, registerer prometheus.Registerer, logger *slog.Logger) *Handler {
	return &Handler{
		config:   config,
		attempts: make(map[attemptKey]int),
		ring:     newRing(config.RingSize),
		audit:    audit,
		notifier: notifier,
		metrics:  NewMetrics(registerer),
		logger:   logger.With("module", "recovery"),
	}
}

// Bind attaches the controller that applies instance remediation.
func (h *Handler) Bind(controller InstanceController) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.controller = controller
}

// HandleError classifies the incident, selects and executes a recovery action and records
// both. It never panics; internal failures degrade to a system/critical/notify_admin response.
func (h *Handler) HandleError(ctx context.Context, incident Incident) (response Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "Recovery handler failed",
				"panic", fmt.Sprint(r),
				"instance_id", incident.InstanceID)

			response = Response{
				Category: CategorySystem,
				Severity: SeverityCritical,
				Action:   ActionNotifyAdmin,
				Message:  fmt.Sprintf("recovery handler failed: %v", r),
			}
		}
	}()

	category, severity := Classify(incident.Err)
	if incident.Category != "" {
		category = incident.Category
		severity = DefaultSeverity(category)
	}

	if incident.Severity != "" {
		severity = incident.Severity
	}

	message := "unknown error"
	if incident.Err != nil {
		message = incident.Err.Error()
	}

	attemptKey := incident.AttemptKey
	if attemptKey == "" {
		attemptKey = incident.InstanceID
	}

	prior := h.nextAttempt(category, attemptKey)
	action := SelectAction(category, severity, prior)

	h.metrics.Errors.WithLabelValues(string(category), string(severity)).Inc()
	h.metrics.Actions.WithLabelValues(string(category), string(action)).Inc()

	h.record(ctx, Record{
		Kind:       RecordKindError,
		Category:   category,
		Severity:   severity,
		Message:    message,
		InstanceID: incident.InstanceID,
		Operation:  incident.Operation,
		Context:    incident.Context,
	})

	h.logger.WarnContext(ctx, "Handling engine failure",
		"category", category,
		"severity", severity,
		"action", action,
		"attempt", prior,
		"instance_id", incident.InstanceID,
		"operation", incident.Operation,
		"error", message)

	outcome := h.execute(ctx, action, category, message, incident)

	h.record(ctx, Record{
		Kind:       RecordKindAction,
		Category:   category,
		Severity:   severity,
		Action:     action,
		Message:    fmt.Sprintf("%s selected after %d prior attempts", action, prior),
		InstanceID: incident.InstanceID,
		Operation:  incident.Operation,
		Context:    outcome,
	})

	return Response{
		Category: category,
		Severity: severity,
		Action:   action,
		Attempt:  prior,
		Message:  message,
	}
}

// Reset clears the attempt counter of key (an AttemptKey or instance id) after a
// successful retry.
func (h *Handler) Reset(category Category, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.attempts, attemptKey{category: category, key: key})
}

// ResetInstance clears every counter of an instance.
func (h *Handler) ResetInstance(instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key := range h.attempts {
		if key.key == instanceID {
			delete(h.attempts, key)
		}
	}
}

// Attempts returns how many failures of category were handled under key.
func (h *Handler) Attempts(category Category, key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.attempts[attemptKey{category: category, key: key}]
}

// Records returns the in-memory recovery log, oldest first.
func (h *Handler) Records() []Record {
	return h.ring.snapshot()
}

func (h *Handler) nextAttempt(category Category, counter string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := attemptKey{category: category, key: counter}
	prior := h.attempts[key]
	h.attempts[key] = prior + 1

	return prior
}

func (h *Handler) boundController() InstanceController {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.controller
}

// execute carries out action and returns the context of its action record. Instance
// remediation that did not run is marked skipped.
func (h *Handler) execute(ctx context.Context, action Action, category Category, message string, incident Incident) map[string]any {
	controller := h.boundController()
	instanceEffects := controller != nil && incident.InstanceID != "" && !incident.Rejected

	var err error

	switch action {
	case ActionManualIntervention:
		if instanceEffects {
			err = controller.SuspendForRecovery(ctx, incident.InstanceID, "manual intervention required: "+message, false)
		}
	case ActionRollback:
		if instanceEffects {
			err = controller.SuspendForRecovery(ctx, incident.InstanceID, "rollback required: "+message, true)
		}
	case ActionEscalate:
		if instanceEffects {
			err = controller.Escalate(ctx, incident.InstanceID, incident.Context)
		}
	case ActionNotifyAdmin:
		if h.notifier != nil {
			h.notifier.Notify(ctx, notify.Intent{
				Type:      notify.TypeAdminAlert,
				Recipient: notify.AdminRecipient,
				Payload: map[string]any{
					"category":    string(category),
					"instance_id": incident.InstanceID,
					"operation":   incident.Operation,
					"message":     message,
				},
			})
		}
	case ActionRetry, ActionIgnore:
	}

	if err != nil {
		h.logger.ErrorContext(ctx, "Recovery action failed",
			"action", action,
			"instance_id", incident.InstanceID,
			"error", err)

		return map[string]any{"failed": true, "error": err.Error()}
	}

	if action.InstanceScoped() && !instanceEffects {
		reason := "no instance"
		if incident.Rejected {
			reason = "request refused"
		}

		return map[string]any{"skipped": true, "skip_reason": reason}
	}

	return nil
}

// record appends to the ring and the audit sink. A failing or panicking sink only reaches
// the system log.
func (h *Handler) record(ctx context.Context, record Record) {
	record.ID = uuid.NewString()
	record.Timestamp = time.Now().UTC()

	h.ring.add(record)

	if h.audit == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "Audit sink panicked", "panic", fmt.Sprint(r), "record_kind", record.Kind)
		}
	}()

	err := h.audit.Record(ctx, record)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to write recovery record",
			"error", err,
			"record_kind", record.Kind,
			"category", record.Category)
	}
}

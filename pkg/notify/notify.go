// Package notify carries notification intents out of the engine. Delivery (e-mail, in-app)
// belongs to downstream consumers; sinks are fire-and-forget.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/google/uuid"
)

type Type string

const (
	TypeApprovalRequested Type = "approval_requested"
	TypeApprovalEscalated Type = "approval_escalated"
	TypeStepNotification  Type = "step_notification"
	TypeInstanceApproved  Type = "instance_approved"
	TypeInstanceRejected  Type = "instance_rejected"
	TypeAdminAlert        Type = "admin_alert"
)

// AdminRecipient addresses the operators on call for the engine.
const AdminRecipient = "admin"

// RolePrefix marks a recipient that is a role rather than a user id.
const RolePrefix = "role:"

type Intent struct {
	Type      Type           `json:"type"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Sink interface {
	Notify(ctx context.Context, intent Intent)
}

// LogSink writes intents to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "notify")}
}

func (s *LogSink) Notify(ctx context.Context, intent Intent) {
	s.logger.InfoContext(ctx, "Notification intent",
		"type", intent.Type,
		"recipient", intent.Recipient,
		"payload", intent.Payload)
}

// BusSink publishes intents as notification.requested events.
type BusSink struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusSink(publisher eventbus.EventPublisher, logger *slog.Logger) *BusSink {
	return &BusSink{
		publisher: publisher,
		logger:    logger.With("module", "notify"),
	}
}

func (s *BusSink) Notify(ctx context.Context, intent Intent) {
	event := events.NotificationRequested{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		NotificationType: string(intent.Type),
		Recipient:        intent.Recipient,
		Payload:          intent.Payload,
	}

	err := s.publisher.Publish(ctx, intent.Recipient, event)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish notification intent",
			"type", intent.Type,
			"recipient", intent.Recipient,
			"error", err)
	}
}

// MultiSink fans intents out to every sink.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, intent Intent) {
	for _, sink := range m {
		sink.Notify(ctx, intent)
	}
}

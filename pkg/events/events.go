// Package events defines the domain and engine events exchanged over the event bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every event; consumers dispatch on the event_type metadata.
const Topic = "approvals.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound domain events.
	BudgetChangedEvent     EventType = "budget.changed"
	MilestoneUpdatedEvent  EventType = "milestone.updated"
	ResourceAllocatedEvent EventType = "resource.allocated"
	RiskEscalatedEvent     EventType = "risk.escalated"

	// Engine output events.
	NotificationRequestedEvent EventType = "notification.requested"
	RecoveryRecordedEvent      EventType = "recovery.recorded"
	InstanceCompletedEvent     EventType = "instance.completed"
)

// BaseEvent carries the fields shared by every domain event.
type BaseEvent struct {
	ID               string         `json:"id"`
	Type             EventType      `json:"type"`
	Timestamp        time.Time      `json:"timestamp"`
	EntityType       string         `json:"entity_type"`
	EntityID         string         `json:"entity_id"`
	IdempotencyToken string         `json:"idempotency_token,omitempty"`
	InitiatedBy      string         `json:"initiated_by,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event id and UTC timestamp.
func NewBaseEvent(eventType EventType, entityType, entityID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		EntityType: entityType,
		EntityID:   entityID,
	}
}

// DedupToken is the caller-supplied idempotency token, falling back to the event id.
func (b BaseEvent) DedupToken() string {
	if b.IdempotencyToken != "" {
		return b.IdempotencyToken
	}

	return b.ID
}

type BudgetChanged struct {
	BaseEvent

	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
	Currency string  `json:"currency,omitempty"`
}

func (e BudgetChanged) GetType() EventType {
	return BudgetChangedEvent
}

type MilestoneUpdated struct {
	BaseEvent

	MilestoneID   string     `json:"milestone_id"`
	MilestoneType string     `json:"milestone_type"`
	Status        string     `json:"status,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

func (e MilestoneUpdated) GetType() EventType {
	return MilestoneUpdatedEvent
}

type ResourceAllocated struct {
	BaseEvent

	ResourceID        string  `json:"resource_id"`
	AllocationPercent float64 `json:"allocation_percent"`
}

func (e ResourceAllocated) GetType() EventType {
	return ResourceAllocatedEvent
}

type RiskEscalated struct {
	BaseEvent

	RiskID    string  `json:"risk_id"`
	RiskLevel string  `json:"risk_level"`
	Category  string  `json:"category,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

func (e RiskEscalated) GetType() EventType {
	return RiskEscalatedEvent
}

// NotificationRequested is a notification intent; delivery is owned by downstream consumers.
type NotificationRequested struct {
	ID               string         `json:"id"`
	Timestamp        time.Time      `json:"timestamp"`
	NotificationType string         `json:"notification_type"`
	Recipient        string         `json:"recipient"`
	Payload          map[string]any `json:"payload,omitempty"`
}

func (e NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

// RecoveryRecorded mirrors one entry of the recovery log for durable audit consumers.
type RecoveryRecorded struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       string         `json:"kind"`
	Category   string         `json:"category"`
	Severity   string         `json:"severity"`
	Action     string         `json:"action,omitempty"`
	Message    string         `json:"message"`
	InstanceID string         `json:"instance_id,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e RecoveryRecorded) GetType() EventType {
	return RecoveryRecordedEvent
}

// InstanceCompleted is published when an instance reaches a terminal status.
type InstanceCompleted struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	InstanceID   string    `json:"instance_id"`
	DefinitionID string    `json:"definition_id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	Status       string    `json:"status"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

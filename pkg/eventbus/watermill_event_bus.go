package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
	logger        *slog.Logger
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		logger:        logger.With("module", "eventbus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	var event any

	switch eventType {
	case events.BudgetChangedEvent:
		event = &events.BudgetChanged{}
	case events.MilestoneUpdatedEvent:
		event = &events.MilestoneUpdated{}
	case events.ResourceAllocatedEvent:
		event = &events.ResourceAllocated{}
	case events.RiskEscalatedEvent:
		event = &events.RiskEscalated{}
	case events.NotificationRequestedEvent:
		event = &events.NotificationRequested{}
	case events.RecoveryRecordedEvent:
		event = &events.RecoveryRecorded{}
	case events.InstanceCompletedEvent:
		event = &events.InstanceCompleted{}
	default:
		msg.Nack()

		return
	}

	// A payload failing its schema can never succeed, so it is dropped rather than redelivered.
	err := events.ValidatePayload(eventType, msg.Payload)
	if err != nil {
		eb.logger.WarnContext(ctx, "Dropping invalid event",
			"event_type", eventType,
			"message_uuid", msg.UUID,
			"error", err)
		msg.Ack()

		return
	}

	err = json.Unmarshal(msg.Payload, event)
	if err != nil {
		msg.Nack()

		return
	}

	err = handler(ctx, event)
	if err != nil {
		eb.logger.ErrorContext(ctx, "Event handler failed",
			"event_type", eventType,
			"message_uuid", msg.UUID,
			"error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

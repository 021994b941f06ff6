package web

import (
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// bindEvent decodes an inbound domain event posted over HTTP. A missing id or timestamp
// is stamped here, so callers that want replays deduplicated must send an id or an
// idempotency_token. The payload is checked against the event type's schema.
func bindEvent(c fiber.Ctx, eventType events.EventType, event any, base *events.BaseEvent) (bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil || raw == nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if id, _ := raw["id"].(string); id == "" {
		raw["id"] = uuid.NewString()
	}

	if _, ok := raw["timestamp"]; !ok {
		raw["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if eventType != "" {
		raw["type"] = string(eventType)
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return false, badRequest(c, err.Error())
	}

	if err := events.ValidatePayload(eventType, payload); err != nil {
		return false, badRequest(c, err.Error())
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return false, badRequest(c, "Invalid event payload: "+err.Error())
	}

	base.Type = eventType

	return true, nil
}

package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPayload is returned when an inbound event does not match its schema.
var ErrInvalidPayload = errors.New("invalid event payload")

var baseProperties = map[string]any{
	"id":                map[string]any{"type": "string", "minLength": 1},
	"type":              map[string]any{"type": "string"},
	"timestamp":         map[string]any{"type": "string"},
	"entity_type":       map[string]any{"type": "string", "minLength": 1},
	"entity_id":         map[string]any{"type": "string", "minLength": 1},
	"idempotency_token": map[string]any{"type": "string"},
	"initiated_by":      map[string]any{"type": "string"},
	"metadata":          map[string]any{"type": "object"},
}

func objectSchema(required []string, properties map[string]any) map[string]any {
	merged := make(map[string]any, len(baseProperties)+len(properties))

	for k, v := range baseProperties {
		merged[k] = v
	}

	for k, v := range properties {
		merged[k] = v
	}

	return map[string]any{
		"type":       "object",
		"required":   append([]string{"id", "entity_type", "entity_id"}, required...),
		"properties": merged,
	}
}

var schemas = map[EventType]map[string]any{
	BudgetChangedEvent: objectSchema([]string{"old_value", "new_value"}, map[string]any{
		"old_value": map[string]any{"type": "number"},
		"new_value": map[string]any{"type": "number"},
		"currency":  map[string]any{"type": "string"},
	}),
	MilestoneUpdatedEvent: objectSchema([]string{"milestone_id", "milestone_type"}, map[string]any{
		"milestone_id":   map[string]any{"type": "string", "minLength": 1},
		"milestone_type": map[string]any{"type": "string", "minLength": 1},
		"status":         map[string]any{"type": "string"},
	}),
	ResourceAllocatedEvent: objectSchema([]string{"resource_id", "allocation_percent"}, map[string]any{
		"resource_id":        map[string]any{"type": "string", "minLength": 1},
		"allocation_percent": map[string]any{"type": "number", "minimum": 0},
	}),
	RiskEscalatedEvent: objectSchema([]string{"risk_id", "risk_level"}, map[string]any{
		"risk_id":    map[string]any{"type": "string", "minLength": 1},
		"risk_level": map[string]any{"type": "string", "minLength": 1},
		"category":   map[string]any{"type": "string"},
		"score":      map[string]any{"type": "number"},
	}),
}

// HasSchema reports whether inbound payloads of the event type are schema-checked.
func HasSchema(eventType EventType) bool {
	_, ok := schemas[eventType]

	return ok
}

// ValidatePayload checks a raw JSON payload against the schema of its event type.
// Event types without a schema always pass.
func ValidatePayload(eventType EventType, payload []byte) error {
	schema, ok := schemas[eventType]
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(errs, "; "))
	}

	return nil
}

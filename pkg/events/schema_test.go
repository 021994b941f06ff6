package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePayload(t *testing.T) {
	valid := BudgetChanged{
		BaseEvent: NewBaseEvent(BudgetChangedEvent, "project", "p-1"),
		OldValue:  100000,
		NewValue:  116000,
	}

	payload, err := json.Marshal(valid)
	require.NoError(t, err)
	require.NoError(t, ValidatePayload(BudgetChangedEvent, payload))

	tests := []struct {
		name      string
		eventType EventType
		payload   string
	}{
		{"missing values", BudgetChangedEvent, `{"id":"e1","entity_type":"project","entity_id":"p-1"}`},
		{"string amount", BudgetChangedEvent, `{"id":"e1","entity_type":"project","entity_id":"p-1","old_value":"1","new_value":2}`},
		{"empty entity", ResourceAllocatedEvent, `{"id":"e1","entity_type":"project","entity_id":"","resource_id":"r","allocation_percent":60}`},
		{"negative allocation", ResourceAllocatedEvent, `{"id":"e1","entity_type":"project","entity_id":"p","resource_id":"r","allocation_percent":-1}`},
		{"missing risk level", RiskEscalatedEvent, `{"id":"e1","entity_type":"project","entity_id":"p","risk_id":"r"}`},
		{"malformed json", MilestoneUpdatedEvent, `{"id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.eventType, []byte(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestValidatePayload_NoSchema(t *testing.T) {
	assert.False(t, HasSchema(NotificationRequestedEvent))
	assert.NoError(t, ValidatePayload(NotificationRequestedEvent, []byte(`not json`)))
}

func TestBaseEvent_DedupToken(t *testing.T) {
	base := NewBaseEvent(RiskEscalatedEvent, "project", "p-1")
	assert.Equal(t, base.ID, base.DedupToken())

	base.IdempotencyToken = "token-1"
	assert.Equal(t, "token-1", base.DedupToken())
}

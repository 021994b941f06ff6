package triggers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetVariance(t *testing.T) {
	tests := []struct {
		name     string
		oldValue float64
		newValue float64
		amount   float64
		percent  float64
	}{
		{"increase", 100000, 116000, 16000, 16},
		{"decrease", 100000, 90000, -10000, 10},
		{"unchanged", 5000, 5000, 0, 0},
		{"negative base", -200, -100, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, percent := BudgetVariance(tt.oldValue, tt.newValue)
			assert.InDelta(t, tt.amount, amount, 1e-9)
			assert.InDelta(t, tt.percent, percent, 1e-9)
		})
	}

	t.Run("zero base stays finite", func(t *testing.T) {
		_, percent := BudgetVariance(0, 10)
		assert.Greater(t, percent, 1e6)
		assert.True(t, ShouldFireBudget(0, 10, 10))
	})
}

func TestShouldFire(t *testing.T) {
	assert.True(t, ShouldFireBudget(100000, 116000, 10))
	assert.True(t, ShouldFireBudget(100000, 110000, 10))
	assert.False(t, ShouldFireBudget(100000, 109999, 10))

	assert.True(t, ShouldFireResource(50.5, 50))
	assert.False(t, ShouldFireResource(50, 50))
	assert.False(t, ShouldFireResource(35, 50))

	gated := []string{"phase_gate", "go_live"}
	assert.True(t, ShouldFireMilestone("go_live", gated))
	assert.True(t, ShouldFireMilestone("PHASE_GATE", gated))
	assert.False(t, ShouldFireMilestone("status_report", gated))

	levels := []string{"high", "critical"}
	assert.True(t, ShouldFireRisk("critical", levels))
	assert.True(t, ShouldFireRisk("High", levels))
	assert.False(t, ShouldFireRisk("medium", levels))
}

package validation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Stefan/orka-ppm-sub007/pkg/log"
	"github.com/Stefan/orka-ppm-sub007/pkg/mocks"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	return NewValidator(testutil.NewTestDirectory(), log.Discard())
}

func containsError(errs []string, fragment string) bool {
	for _, e := range errs {
		if strings.Contains(e, fragment) {
			return true
		}
	}

	return false
}

func TestValidate_ValidDefinition(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(0, testutil.WithRoles("project_manager"), testutil.WithApprovers()),
		testutil.CreateTestStep(1,
			testutil.WithApprovers("bob", "erin", "alice"),
			testutil.WithApprovalType(models.ApprovalTypeQuorum, 2),
			testutil.WithDependsOn(0),
			testutil.WithTimeout(48)),
	)
	definition.Triggers = []*models.Trigger{
		{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": 10.0}},
	}

	result, err := v.Validate(t.Context(), definition, true)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(0, func(s *models.Step) { s.Name = "" }),
		testutil.CreateTestStep(2, testutil.WithApprovers(), testutil.WithTimeout(9000)),
	)
	definition.Name = ""
	definition.Version = 0

	result, err := v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	assert.True(t, containsError(result.Errors, "workflow name is required"))
	assert.True(t, containsError(result.Errors, "version must be at least 1"))
	assert.True(t, containsError(result.Errors, "sequential starting at 0"))
	assert.True(t, containsError(result.Errors, "step 0: name is required"))
	assert.True(t, containsError(result.Errors, "step 2: approval steps require at least one approver"))
	assert.True(t, containsError(result.Errors, "timeout_hours must be between 1 and 8760"))

	// Check order is preserved: definition-level errors come first.
	assert.Contains(t, result.Errors[0], "workflow name")
}

func TestValidate_DoesNotMutate(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(1),
		testutil.CreateTestStep(0),
	)

	result, err := v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, definition.Steps[0].Order)
	assert.Equal(t, 0, definition.Steps[1].Order)
}

func TestValidate_OrderGapsAndDuplicates(t *testing.T) {
	v := newTestValidator()

	for _, orders := range [][]int{{0, 2}, {0, 0}, {1, 2}} {
		definition := testutil.CreateTestDefinition(
			testutil.CreateTestStep(orders[0]),
			testutil.CreateTestStep(orders[1]),
		)

		result, err := v.Validate(t.Context(), definition, false)
		require.NoError(t, err)
		assert.False(t, result.Valid, "orders %v", orders)
		assert.True(t, containsError(result.Errors, "sequential"))
	}
}

func TestValidate_ApprovalTypeRules(t *testing.T) {
	tests := []struct {
		name     string
		step     *models.Step
		fragment string
	}{
		{
			name:     "quorum without count",
			step:     testutil.CreateTestStep(0, testutil.WithApprovalType(models.ApprovalTypeQuorum)),
			fragment: "quorum_count of at least 1",
		},
		{
			name: "quorum above total approvers",
			step: testutil.CreateTestStep(0,
				testutil.WithApprovers("alice"),
				testutil.WithRoles("finance_manager"),
				testutil.WithApprovalType(models.ApprovalTypeQuorum, 3)),
			fragment: "exceeds total approvers 2",
		},
		{
			name:     "count on non quorum",
			step:     testutil.CreateTestStep(0, testutil.WithApprovalType(models.ApprovalTypeAll, 1)),
			fragment: "only allowed for quorum",
		},
		{
			name:     "majority with one approver",
			step:     testutil.CreateTestStep(0, testutil.WithApprovalType(models.ApprovalTypeMajority)),
			fragment: "at least 2 approvers",
		},
		{
			name: "any with eleven approvers",
			step: testutil.CreateTestStep(0,
				testutil.WithApprovers("u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8", "u9", "u10", "u11")),
			fragment: "risks concurrent decisions",
		},
		{
			name:     "missing approval type",
			step:     testutil.CreateTestStep(0, testutil.WithApprovalType("")),
			fragment: "approval_type is required",
		},
	}

	v := newTestValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(t.Context(), testutil.CreateTestDefinition(tt.step), false)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.True(t, containsError(result.Errors, tt.fragment), result.Errors)
		})
	}
}

func TestValidate_QuorumAtBoundary(t *testing.T) {
	v := newTestValidator()

	step := testutil.CreateTestStep(0,
		testutil.WithApprovers("alice", "carol"),
		testutil.WithRoles("finance_manager"),
		testutil.WithApprovalType(models.ApprovalTypeQuorum, 3))

	result, err := v.Validate(t.Context(), testutil.CreateTestDefinition(step), true)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Errors)
}

func TestValidate_Dependencies(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(0, testutil.WithParallel()),
		testutil.CreateTestStep(1, testutil.WithDependsOn(1)),
		testutil.CreateTestStep(2, testutil.WithDependsOn(7)),
	)

	result, err := v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, containsError(result.Errors, "step 1: depends_on_step 1"))
	assert.True(t, containsError(result.Errors, "step 2: depends_on_step 7"))
	assert.True(t, containsError(result.Errors, "first step cannot be parallel"))
}

func TestValidate_NeedsApprovalStep(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(0, func(s *models.Step) { s.Type = models.StepTypeNotification }),
	)

	result, err := v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, containsError(result.Errors, "at least one approval step"))

	empty := testutil.CreateTestDefinition()
	empty.Steps = nil

	result, err = v.Validate(t.Context(), empty, false)
	require.NoError(t, err)
	assert.True(t, containsError(result.Errors, "at least one step"))
}

func TestValidate_Approvers(t *testing.T) {
	v := newTestValidator()

	definition := testutil.CreateTestDefinition(
		testutil.CreateTestStep(0,
			testutil.WithApprovers("alice", "dave", "ghost"),
			testutil.WithRoles("finance_manager", "viewer", "nobody")),
	)

	result, err := v.Validate(t.Context(), definition, true)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, containsError(result.Errors, "approver dave lacks approval permissions"))
	assert.True(t, containsError(result.Errors, "approver ghost does not exist"))
	assert.True(t, containsError(result.Errors, "approver role viewer lacks approval permissions"))
	assert.True(t, containsError(result.Errors, "approver role nobody does not exist"))
	assert.False(t, containsError(result.Errors, "approver alice"))
	assert.False(t, containsError(result.Errors, "role finance_manager"))

	// Skipping approver checks accepts the same definition.
	result, err = v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Errors)
}

func TestValidate_DirectoryFailure(t *testing.T) {
	directory := &mocks.MockDirectory{}
	directory.On("UserExists", mock.Anything, "alice").Return(false, errors.New("connection refused"))

	v := NewValidator(directory, log.Discard())

	_, err := v.Validate(t.Context(), testutil.CreateTestDefinition(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	directory.AssertExpectations(t)
}

func TestValidate_Triggers(t *testing.T) {
	tests := []struct {
		name     string
		trigger  *models.Trigger
		fragment string
	}{
		{"unknown type", &models.Trigger{Type: "weather"}, "unknown trigger_type"},
		{"budget without thresholds", &models.Trigger{Type: models.TriggerTypeBudgetChange}, "require threshold_values"},
		{"risk without thresholds", &models.Trigger{Type: models.TriggerTypeRiskThreshold}, "require threshold_values"},
		{
			"negative percentage",
			&models.Trigger{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": -5.0}},
			"positive number",
		},
		{
			"non numeric percentage",
			&models.Trigger{Type: models.TriggerTypeRiskThreshold, ThresholdValues: map[string]any{"percentage": "high"}},
			"positive number",
		},
		{
			"NaN percentage string",
			&models.Trigger{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": "NaN"}},
			"positive number",
		},
		{
			"infinite percentage string",
			&models.Trigger{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": "Inf"}},
			"positive number",
		},
		{
			"infinite percentage value",
			&models.Trigger{Type: models.TriggerTypeRiskThreshold, ThresholdValues: map[string]any{"percentage": math.Inf(1)}},
			"positive number",
		},
		{
			"NaN percentage value",
			&models.Trigger{Type: models.TriggerTypeRiskThreshold, ThresholdValues: map[string]any{"percentage": math.NaN()}},
			"positive number",
		},
	}

	v := newTestValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := testutil.CreateTestDefinition()
			definition.Triggers = []*models.Trigger{tt.trigger}

			result, err := v.Validate(t.Context(), definition, false)
			require.NoError(t, err)
			assert.False(t, result.Valid)
			assert.True(t, containsError(result.Errors, tt.fragment), result.Errors)
		})
	}

	definition := testutil.CreateTestDefinition()
	definition.Triggers = []*models.Trigger{
		{Type: models.TriggerTypeMilestoneUpdate},
		{Type: models.TriggerTypeRiskThreshold, ThresholdValues: map[string]any{"level": "high"}},
		{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": " 12.5 "}},
	}

	result, err := v.Validate(t.Context(), definition, false)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Errors)
}

func TestValidate_Conditions(t *testing.T) {
	v := newTestValidator()

	step := testutil.CreateTestStep(0)
	step.Conditions = &models.Conditions{
		Rules:      []models.Rule{{Field: "", Operator: "like"}},
		Expression: "{{ if .x }",
	}

	result, err := v.Validate(t.Context(), testutil.CreateTestDefinition(step), false)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, containsError(result.Errors, "rule field is required"))
	assert.True(t, containsError(result.Errors, `operator "like"`))
	assert.True(t, containsError(result.Errors, "expression is invalid"))
}

package web_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Stefan/orka-ppm-sub007/pkg/authority"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/log"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/file"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/Stefan/orka-ppm-sub007/pkg/services"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/testutil"
	"github.com/Stefan/orka-ppm-sub007/pkg/triggers"
	"github.com/Stefan/orka-ppm-sub007/pkg/validation"
	"github.com/Stefan/orka-ppm-sub007/pkg/web"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	directory := testutil.NewTestDirectory()
	registry := prometheus.NewRegistry()
	handler := recovery.NewHandler(recovery.DefaultConfig(), nil, nil, registry, log.Discard())
	approvalEngine := engine.New(engine.DefaultConfig(), store, directory, handler, &testutil.RecordingSink{}, log.Discard())
	templateRegistry := templates.NewRegistry(log.Discard())
	definitions := services.NewDefinitions(store,
		validation.NewValidator(directory, log.Discard()), templateRegistry, log.Discard())
	integrator := triggers.NewIntegrator(triggers.DefaultConfig(), approvalEngine, definitions, nil, log.Discard())

	handlers := web.NewAPIHandlers(
		definitions,
		templateRegistry,
		approvalEngine,
		integrator,
		authority.NewChecker(directory, log.Discard()),
		validator.New(validator.WithRequiredStructEnabled()),
		registry,
	)

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", handlers.Metrics())

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.CreateDefinition)
	d.Post("/validate", handlers.ValidateDefinition)
	d.Get("/:id", handlers.GetDefinition)
	d.Put("/:id", handlers.UpdateDefinition)
	d.Post("/:id/activate", handlers.ActivateDefinition)
	d.Post("/:id/suspend", handlers.SuspendDefinition)
	d.Post("/:id/archive", handlers.ArchiveDefinition)
	d.Post("/:id/versions", handlers.CreateDefinitionVersion)

	tm := app.Group("/templates")
	tm.Get("/", handlers.GetTemplates)
	tm.Post("/:type/instantiate", handlers.InstantiateTemplate)
	tm.Post("/:type/validate", handlers.ValidateTemplateCustomizations)

	i := app.Group("/instances")
	i.Post("/", handlers.CreateInstance)
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/suspend", handlers.SuspendInstance)
	i.Post("/:id/resume", handlers.ResumeInstance)
	i.Post("/:id/cancel", handlers.CancelInstance)

	app.Post("/approvals/:id/decision", handlers.SubmitDecision)
	app.Get("/users/:id/pending-approvals", handlers.GetPendingApprovals)

	e := app.Group("/events")
	e.Post("/budget-change", handlers.BudgetChange)
	e.Post("/milestone-update", handlers.MilestoneUpdate)
	e.Post("/resource-allocation", handlers.ResourceAllocation)
	e.Post("/risk", handlers.RiskEvent)
	e.Post("/change-request", handlers.ChangeRequest)

	a := app.Group("/authority")
	a.Post("/check", handlers.CheckAuthority)
	a.Post("/workflow-type", handlers.DetermineWorkflowType)
	a.Post("/approval-path", handlers.DetermineApprovalPath)

	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))

	return out
}

func problemType(t *testing.T, data []byte) string {
	t.Helper()

	return decode[map[string]any](t, data)["type"].(string)
}

func createDefinition(t *testing.T, app *fiber.App, approvalType models.ApprovalType, approvers ...string) *models.WorkflowDefinition {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/definitions", web.CreateDefinitionRequest{
		Name:      "Scope Change",
		Steps:     []*models.Step{testutil.CreateTestStep(0, testutil.WithApprovers(approvers...), testutil.WithApprovalType(approvalType))},
		CreatedBy: "alice",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[*models.WorkflowDefinition](t, body)
}

func startInstance(t *testing.T, app *fiber.App, approvers ...string) *models.WorkflowInstance {
	t.Helper()

	definition := createDefinition(t, app, models.ApprovalTypeAll, approvers...)

	status, body := do(t, app, http.MethodPost, "/definitions/"+definition.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, app, http.MethodPost, "/instances", engine.CreateInstanceRequest{
		DefinitionID: definition.ID,
		Entity:       models.Entity{Type: "project", ID: "p-1"},
		Context:      models.InstanceContext{Kind: models.ContextKindOpaque},
		InitiatedBy:  "alice",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[*models.WorkflowInstance](t, body)
}

func pendingFor(t *testing.T, app *fiber.App, userID string) web.PendingApprovalsResponse {
	t.Helper()

	status, body := do(t, app, http.MethodGet, "/users/"+userID+"/pending-approvals", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	return decode[web.PendingApprovalsResponse](t, body)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	result := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", result["status"])
	assert.Contains(t, result["checkers"], "repository")
	assert.Contains(t, result["checkers"], "templates")
}

func TestAPIHandlers_CreateDefinition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "successful creation",
			requestBody: web.CreateDefinitionRequest{
				Name:      "Budget Review",
				Steps:     []*models.Step{testutil.CreateTestStep(0)},
				CreatedBy: "alice",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "missing name",
			requestBody: web.CreateDefinitionRequest{
				Steps:     []*models.Step{testutil.CreateTestStep(0)},
				CreatedBy: "alice",
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "no steps",
			requestBody: web.CreateDefinitionRequest{
				Name:      "Budget Review",
				CreatedBy: "alice",
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "quorum without count",
			requestBody: web.CreateDefinitionRequest{
				Name: "Budget Review",
				Steps: []*models.Step{testutil.CreateTestStep(0,
					testutil.WithApprovers("alice", "bob"),
					testutil.WithApprovalType(models.ApprovalTypeQuorum))},
				CreatedBy: "alice",
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "invalid json",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t)

			status, body := do(t, app, http.MethodPost, "/definitions", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, problemType(t, body))

				return
			}

			definition := decode[*models.WorkflowDefinition](t, body)
			assert.NotEmpty(t, definition.ID)
			assert.Equal(t, models.DefinitionStatusDraft, definition.Status)
			assert.Equal(t, 1, definition.Version)
		})
	}
}

func TestAPIHandlers_DefinitionLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := createDefinition(t, app, models.ApprovalTypeAny, "alice")
	path := "/definitions/" + definition.ID

	status, body := do(t, app, http.MethodPut, path, web.UpdateDefinitionRequest{
		Name:  "Scope Change v2",
		Steps: definition.Steps,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 2, decode[*models.WorkflowDefinition](t, body).Version)

	status, body = do(t, app, http.MethodPost, path+"/activate", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.DefinitionStatusActive, decode[*models.WorkflowDefinition](t, body).Status)

	status, body = do(t, app, http.MethodPut, path, web.UpdateDefinitionRequest{
		Name:  "Scope Change v3",
		Steps: definition.Steps,
	})
	assert.Equal(t, http.StatusConflict, status, string(body))
	assert.Equal(t, "conflict", problemType(t, body))

	status, body = do(t, app, http.MethodPost, path+"/versions", web.NewVersionRequest{CreatedBy: "bob"})
	require.Equal(t, http.StatusCreated, status, string(body))

	draft := decode[*models.WorkflowDefinition](t, body)
	assert.NotEqual(t, definition.ID, draft.ID)
	assert.Equal(t, models.DefinitionStatusDraft, draft.Status)
	assert.Equal(t, 3, draft.Version)

	status, _ = do(t, app, http.MethodPost, path+"/suspend", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, app, http.MethodPost, path+"/archive", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.DefinitionStatusArchived, decode[*models.WorkflowDefinition](t, body).Status)

	status, body = do(t, app, http.MethodGet, "/definitions?status=archived", nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1, decode[map[string]any](t, body)["total_count"], 0)

	status, body = do(t, app, http.MethodGet, "/definitions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodGet, "/definitions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "definition_not_found", problemType(t, body))
}

func TestAPIHandlers_ActivateChecksApprovers(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := createDefinition(t, app, models.ApprovalTypeAny, "nobody")

	status, body := do(t, app, http.MethodPost, "/definitions/"+definition.ID+"/activate", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	detail := decode[map[string]any](t, body)["detail"]
	assert.Contains(t, detail, "nobody")
}

func TestAPIHandlers_ValidateDefinition(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := testutil.CreateTestDefinition(testutil.CreateTestStep(0, testutil.WithTimeout(9000)))

	status, body := do(t, app, http.MethodPost, "/definitions/validate", web.ValidateDefinitionRequest{Definition: definition})
	require.Equal(t, http.StatusOK, status, string(body))

	result := decode[validation.Result](t, body)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	status, _ = do(t, app, http.MethodPost, "/definitions/validate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_Templates(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[map[string][]*templates.Template](t, body)["templates"], 3)

	status, body = do(t, app, http.MethodPost, "/templates/budget_approval/instantiate", web.InstantiateTemplateRequest{
		Name: "Capex Budget",
		Customizations: &templates.Customizations{
			Steps: map[int]map[string]any{0: {"timeout_hours": 24}},
		},
		CreatedBy: "alice",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	definition := decode[*models.WorkflowDefinition](t, body)
	assert.Equal(t, "Capex Budget", definition.Name)
	assert.Equal(t, "budget_approval", definition.Metadata["template_type"])
	require.NotNil(t, definition.Steps[0].TimeoutHours)
	assert.Equal(t, 24, *definition.Steps[0].TimeoutHours)

	status, body = do(t, app, http.MethodPost, "/templates/budget_approval/validate", web.InstantiateTemplateRequest{
		Customizations: &templates.Customizations{
			Steps: map[int]map[string]any{0: {"timeout_hours": 0}},
		},
		CreatedBy: "alice",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	result := decode[templates.CustomizationResult](t, body)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	status, body = do(t, app, http.MethodPost, "/templates/budget_approval/instantiate", web.InstantiateTemplateRequest{
		Customizations: &templates.Customizations{ExcludedSteps: []int{0, 1, 2}},
		CreatedBy:      "alice",
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodPost, "/templates/unknown/instantiate", web.InstantiateTemplateRequest{CreatedBy: "alice"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "template_not_found", problemType(t, body))
}

func TestAPIHandlers_DecisionFlow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	instance := startInstance(t, app, "alice", "bob")
	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)

	pending := pendingFor(t, app, "alice")
	require.Equal(t, 1, pending.Count)

	aliceApproval := pending.Approvals[0]
	decision := "/approvals/" + aliceApproval.ID + "/decision"

	status, body := do(t, app, http.MethodPost, decision, web.DecisionRequest{Decision: models.DecisionApproved, Actor: "dave"})
	assert.Equal(t, http.StatusForbidden, status, string(body))
	assert.Equal(t, "permission_denied", problemType(t, body))

	status, body = do(t, app, http.MethodPost, decision, web.DecisionRequest{Decision: "maybe", Actor: "alice"})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodPost, decision, web.DecisionRequest{Decision: models.DecisionApproved, Actor: "alice"})
	require.Equal(t, http.StatusOK, status, string(body))

	result := decode[engine.DecisionResult](t, body)
	assert.Equal(t, models.InstanceStatusInProgress, result.Status)
	assert.False(t, result.IsComplete)

	status, body = do(t, app, http.MethodPost, decision, web.DecisionRequest{Decision: models.DecisionApproved, Actor: "alice"})
	assert.Equal(t, http.StatusConflict, status, string(body))

	bobApproval := pendingFor(t, app, "bob").Approvals[0]

	status, body = do(t, app, http.MethodPost, "/approvals/"+bobApproval.ID+"/decision",
		web.DecisionRequest{Decision: models.DecisionApproved, Actor: "bob", Comments: "ok"})
	require.Equal(t, http.StatusOK, status, string(body))

	result = decode[engine.DecisionResult](t, body)
	assert.Equal(t, models.InstanceStatusApproved, result.Status)
	assert.True(t, result.IsComplete)

	status, body = do(t, app, http.MethodGet, "/instances/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, status)

	snapshot := decode[engine.Snapshot](t, body)
	assert.Equal(t, models.InstanceStatusApproved, snapshot.Instance.Status)
	assert.Len(t, snapshot.Approvals, 2)

	assert.Zero(t, pendingFor(t, app, "alice").Count)

	status, body = do(t, app, http.MethodPost, "/approvals/missing/decision", web.DecisionRequest{Decision: models.DecisionApproved, Actor: "alice"})
	assert.Equal(t, http.StatusNotFound, status, string(body))
}

func TestAPIHandlers_InstanceControls(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	instance := startInstance(t, app, "alice")
	path := "/instances/" + instance.ID

	status, body := do(t, app, http.MethodPost, path+"/suspend", web.ControlRequest{Reason: "budget freeze"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.InstanceStatusSuspended, decode[*models.WorkflowInstance](t, body).Status)

	approval := pendingFor(t, app, "alice")
	assert.Zero(t, approval.Count)

	status, body = do(t, app, http.MethodPost, path+"/resume", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.InstanceStatusInProgress, decode[*models.WorkflowInstance](t, body).Status)

	status, body = do(t, app, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.InstanceStatusCancelled, decode[*models.WorkflowInstance](t, body).Status)

	status, body = do(t, app, http.MethodPost, path+"/resume", nil)
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, body = do(t, app, http.MethodGet, "/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "instance_not_found", problemType(t, body))
}

func TestAPIHandlers_CreateInstanceOnDraftDefinition(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := createDefinition(t, app, models.ApprovalTypeAny, "alice")

	status, body := do(t, app, http.MethodPost, "/instances", engine.CreateInstanceRequest{
		DefinitionID: definition.ID,
		Entity:       models.Entity{Type: "project", ID: "p-1"},
		InitiatedBy:  "alice",
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, _ = do(t, app, http.MethodPost, "/instances", engine.CreateInstanceRequest{DefinitionID: definition.ID})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_Events(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	budget := map[string]any{
		"entity_type":       "project",
		"entity_id":         "p-1",
		"idempotency_token": "tok-1",
		"old_value":         100000,
		"new_value":         116000,
	}

	status, body := do(t, app, http.MethodPost, "/events/budget-change", budget)
	require.Equal(t, http.StatusCreated, status, string(body))

	outcome := decode[triggers.Outcome](t, body)
	assert.True(t, outcome.Fired)
	require.NotNil(t, outcome.Instance)

	status, body = do(t, app, http.MethodPost, "/events/budget-change", budget)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[triggers.Outcome](t, body).Duplicate)

	status, body = do(t, app, http.MethodPost, "/events/budget-change", map[string]any{
		"entity_type": "project",
		"entity_id":   "p-2",
		"old_value":   100000,
		"new_value":   101000,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.False(t, decode[triggers.Outcome](t, body).Fired)

	status, body = do(t, app, http.MethodPost, "/events/budget-change", map[string]any{
		"entity_type": "project",
		"entity_id":   "p-3",
		"new_value":   101000,
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodPost, "/events/risk", map[string]any{
		"entity_type": "project",
		"entity_id":   "p-1",
		"risk_id":     "r-1",
		"risk_level":  "critical",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.False(t, decode[triggers.Outcome](t, body).Fired)

	status, body = do(t, app, http.MethodPost, "/events/resource-allocation", map[string]any{
		"entity_type":        "project",
		"entity_id":          "p-1",
		"resource_id":        "res-1",
		"allocation_percent": 80,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = do(t, app, http.MethodPost, "/events/milestone-update", map[string]any{
		"entity_type":    "project",
		"entity_id":      "p-1",
		"milestone_id":   "m-1",
		"milestone_type": "design_review",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.False(t, decode[triggers.Outcome](t, body).Fired)
}

func TestAPIHandlers_ChangeRequest(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/events/change-request", map[string]any{
		"entity_type": "change",
		"entity_id":   "cr-1",
		"change_type": "SCOPE",
		"priority":    "MEDIUM",
		"cost_impact": 10000,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	outcome := decode[triggers.Outcome](t, body)
	require.NotNil(t, outcome.Instance)
	assert.Equal(t, models.WorkflowTypeStandard, outcome.Instance.Context.Change.WorkflowType)

	status, body = do(t, app, http.MethodPost, "/events/change-request", map[string]any{
		"entity_type": "change",
		"entity_id":   "cr-2",
		"priority":    "MEDIUM",
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))
}

func TestAPIHandlers_Authority(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name       string
		request    web.AuthorityCheckRequest
		authorized bool
	}{
		{"within budget limit", web.AuthorityCheckRequest{UserID: "alice", ChangeValue: 60000, ChangeType: models.ChangeTypeBudget, Role: "project_manager"}, true},
		{"above budget limit", web.AuthorityCheckRequest{UserID: "alice", ChangeValue: 80000, ChangeType: models.ChangeTypeBudget, Role: "project_manager"}, false},
		{"default limit", web.AuthorityCheckRequest{UserID: "alice", ChangeValue: 60000, ChangeType: models.ChangeTypeScope, Role: "project_manager"}, false},
		{"role without limit", web.AuthorityCheckRequest{UserID: "dave", ChangeValue: 1, ChangeType: models.ChangeTypeScope, Role: "viewer"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, "/authority/check", tt.request)
			require.Equal(t, http.StatusOK, status, string(body))
			assert.Equal(t, tt.authorized, decode[web.AuthorityCheckResponse](t, body).Authorized)
		})
	}

	status, body := do(t, app, http.MethodPost, "/authority/workflow-type", web.ChangeCharacteristicsRequest{
		Priority: models.PriorityEmergency, CostImpact: 1000, ChangeType: models.ChangeTypeScope,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "EMERGENCY", decode[map[string]any](t, body)["workflow_type"])

	status, body = do(t, app, http.MethodPost, "/authority/approval-path", web.ApprovalPathRequest{
		ChangeCharacteristicsRequest: web.ChangeCharacteristicsRequest{
			Priority: models.PriorityMedium, CostImpact: 600000, ChangeType: models.ChangeTypeScope,
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	path := decode[web.ApprovalPathResponse](t, body)
	assert.Equal(t, models.WorkflowTypeHighValue, path.WorkflowType)

	roles := make([]string, 0, len(path.Path))
	for _, step := range path.Path {
		roles = append(roles, step.ApproverRole)
	}

	assert.Contains(t, roles, authority.RoleExecutiveSponsor)

	status, _ = do(t, app, http.MethodPost, "/authority/workflow-type", map[string]any{"priority": "URGENT", "change_type": "SCOPE"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_Metrics(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, _ := do(t, app, http.MethodGet, "/instances/missing", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body := do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "approvals_errors_total")
}

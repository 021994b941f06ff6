// Package main provides the approvals API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/Stefan/orka-ppm-sub007/pkg/cmd"
	"github.com/Stefan/orka-ppm-sub007/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger     *slog.Logger
	components *cmd.Components
	validate   *validator.Validate
}

func NewAPI(logger *slog.Logger, components *cmd.Components) *API {
	return &API{
		logger:     logger,
		components: components,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.components.Definitions,
		a.components.Templates,
		a.components.Engine,
		a.components.Triggers,
		a.components.Authority,
		a.validate,
		a.components.Registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Approvals API")
	})

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

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/:type/instantiate", handlers.InstantiateTemplate)
	t.Post("/:type/validate", handlers.ValidateTemplateCustomizations)

	i := app.Group("/instances")
	i.Post("/", handlers.CreateInstance)
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/suspend", handlers.SuspendInstance)
	i.Post("/:id/resume", handlers.ResumeInstance)
	i.Post("/:id/cancel", handlers.CancelInstance)

	app.Post("/approvals/:id/decision", handlers.SubmitDecision)
	app.Get("/users/:id/pending-approvals", handlers.GetPendingApprovals)

	// Synchronous event ingestion; the worker consumes the same events from the bus.
	e := app.Group("/events")
	e.Post("/budget-change", handlers.BudgetChange)
	e.Post("/milestone-update", handlers.MilestoneUpdate)
	e.Post("/resource-allocation", handlers.ResourceAllocation)
	e.Post("/risk", handlers.RiskEvent)
	e.Post("/change-request", handlers.ChangeRequest)

	au := app.Group("/authority")
	au.Post("/check", handlers.CheckAuthority)
	au.Post("/workflow-type", handlers.DetermineWorkflowType)
	au.Post("/approval-path", handlers.DetermineApprovalPath)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", handlers.Metrics())

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting approvals API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}

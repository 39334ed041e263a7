// Package main provides the oddsflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/oddsflow/oddsflow/pkg/eventbus"
	"github.com/oddsflow/oddsflow/pkg/persistence"
	"github.com/oddsflow/oddsflow/pkg/providers/papertrade"
	"github.com/oddsflow/oddsflow/pkg/registry"
	"github.com/oddsflow/oddsflow/pkg/services"
	"github.com/oddsflow/oddsflow/pkg/web"
	"github.com/oddsflow/oddsflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	workflows := workflow.NewRepository(a.persistence.WorkflowRepository())
	executions := services.NewExecution(a.logger, a.persistence, a.eventBus)
	approvals := services.NewApproval(a.logger, a.persistence.DecisionRepository(), papertrade.NewExecutor(a.logger), a.eventBus)

	handlers := web.NewAPIHandlers(workflows, executions, approvals, a.persistence, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("oddsflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/unpublish", handlers.UnpublishWorkflow)
	w.Post("/:id/trigger", handlers.TriggerWorkflow)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/traces", handlers.GetExecutionTraces)

	d := app.Group("/decisions")
	d.Get("/:id", handlers.GetDecision)
	d.Post("/:id/approve", handlers.ApproveDecision)
	d.Post("/:id/reject", handlers.RejectDecision)

	app.Get("/nodes", handlers.GetAvailableNodes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

// Package main provides the Outdial API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/engine"
	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/web"
	"github.com/outdialhq/outdial/pkg/workflow"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	engine       *engine.Engine
	monitor      *compliance.Monitor
	queue        *dialqueue.Service
	stateMachine *workflow.StateMachine
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	eng *engine.Engine,
	monitor *compliance.Monitor,
	queue *dialqueue.Service,
	stateMachine *workflow.StateMachine,
) *API {
	return &API{
		logger:       logger,
		persistence:  persist,
		engine:       eng,
		monitor:      monitor,
		queue:        queue,
		stateMachine: stateMachine,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.engine, a.monitor, a.queue, a.stateMachine)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Outdial API")
	})

	app.Post("/tick", handlers.RunTick)
	app.Get("/campaigns/:id/compliance", handlers.ComplianceReport)
	app.Get("/queue/pending", handlers.PendingQueue)

	w := app.Group("/workflows")
	w.Post("/enroll", handlers.EnrollLead)
	w.Post("/progress/:id/pause", handlers.PauseProgress)
	w.Post("/progress/:id/resume", handlers.ResumeProgress)

	app.Delete("/leads/:id/workflows", handlers.RemoveLead)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

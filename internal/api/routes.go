package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/riskassess/backend/internal/api/handlers"
	"github.com/riskassess/backend/internal/metrics"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Session   *handlers.SessionHandler
	Import    *handlers.ImportHandler
	Archive   *handlers.ArchiveHandler
	WebSocket *handlers.WebSocketHandler
	// RateLimit guards the session and websocket routes. Probes and the
	// metrics scrape are never limited. Nil disables limiting.
	RateLimit fiber.Handler
}

// RegisterRoutes mounts the public API under /api/v1.
func RegisterRoutes(app *fiber.App, h Handlers) {
	limit := h.RateLimit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api/v1")

	api.Get("/health", h.Health.Health)
	api.Get("/ready", h.Health.Ready)
	api.Get("/metrics", metrics.MetricsHandler())

	api.Get("/attributes/default", h.Session.DefaultAttributes)

	sessions := api.Group("/sessions", limit)
	sessions.Post("", h.Session.CreateSession)
	sessions.Delete("/:id", h.Session.DeleteSession)
	sessions.Get("/:id/attributes", h.Session.GetAttributes)
	sessions.Post("/:id/import", h.Import.ImportAttributes)

	sessions.Post("/:id/predictions", h.Session.Submit)
	sessions.Get("/:id/predictions", h.Session.History)
	sessions.Get("/:id/predictions/current", h.Session.Current)
	sessions.Put("/:id/predictions/current/:pid", h.Session.SelectCurrent)
	sessions.Delete("/:id/predictions/current", h.Session.ClearCurrent)
	sessions.Post("/:id/predictions/:pid/feedback", h.Session.Feedback)

	api.Get("/archive/predictions", h.Archive.ListPredictions)
	api.Get("/stats", h.Archive.Stats)

	api.Get("/ws/:id", limit, h.WebSocket.Upgrade, websocket.New(h.WebSocket.HandleConnection))
}

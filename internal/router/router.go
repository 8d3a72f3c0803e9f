package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/digilearn/moodle-sync-api/internal/config"
	"github.com/digilearn/moodle-sync-api/internal/handler"
	"github.com/digilearn/moodle-sync-api/internal/middleware"
	"github.com/digilearn/moodle-sync-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SyncHandler   *handler.SyncHandler
	DebugHandler  *handler.DebugHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SyncHandler != nil {
		// Sync triggers fan out into many remote calls, keep the trigger
		// rate low per caller.
		sync := api.Group("/sync", jwtMiddleware, middleware.RateLimit("sync", 10, time.Minute))
		deps.SyncHandler.Register(sync)
	}

	if deps.DebugHandler != nil {
		debug := api.Group("/moodle/debug", jwtMiddleware)
		deps.DebugHandler.Register(debug)
	}
}

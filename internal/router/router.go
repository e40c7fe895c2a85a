package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/handler"
	"github.com/yousiff139-lang/LAS/internal/middleware"
	"github.com/yousiff139-lang/LAS/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ScanHandler       *handler.ScanHandler
	ImportHandler     *handler.ImportHandler
	AttendanceHandler *handler.AttendanceHandler
	DeviceHandler     *handler.DeviceHandler
	StudentHandler    *handler.StudentHandler
	ScheduleHandler   *handler.ScheduleHandler
	ReadyCheck        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/healthz", handler.HealthCheck(cfg))
	if deps.ReadyCheck != nil {
		app.Get("/readyz", deps.ReadyCheck)
	} else {
		app.Get("/readyz", handler.HealthCheck(cfg))
	}
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	if deps.ScanHandler != nil {
		// The push surface is open to terminal agents; the limiter keeps a
		// looping agent from flooding the matching engine.
		deps.ScanHandler.Register(api.Group("/scans", middleware.RateLimit("scans", 120, time.Minute)))
	}
	if deps.ImportHandler != nil {
		deps.ImportHandler.Register(api.Group("/imports"))
	}
	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.Register(api.Group("/attendance"))
	}
	if deps.DeviceHandler != nil {
		deps.DeviceHandler.Register(api.Group("/devices"))
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(api.Group("/students"))
	}
	if deps.ScheduleHandler != nil {
		deps.ScheduleHandler.Register(api.Group("/schedule-windows"))
	}
}

package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/utils"
	"github.com/yousiff139-lang/LAS/pkg/faceclient"
)

// HealthResponse represents the payload returned by the health endpoints.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// HealthCheck returns a handler that reports process liveness.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// ReadyCheck returns a handler that probes the dependencies requests
// actually need: the database, plus the face service when configured.
func ReadyCheck(cfg config.Config, db *gorm.DB, face *faceclient.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err != nil {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "database unreachable")
		}
		if err := sqlDB.PingContext(c.Context()); err != nil {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "database unreachable")
		}

		if face != nil {
			if err := face.Health(c.Context()); err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "face service unreachable")
			}
		}

		payload := HealthResponse{
			Status:      "ready",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service ready", payload)
	}
}

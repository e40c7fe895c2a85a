package handler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/middleware"
	"github.com/yousiff139-lang/LAS/internal/service"
	"github.com/yousiff139-lang/LAS/internal/utils"
)

// AttendanceHandler serves the reconciled attendance ledger, the manual
// absence sweep, and the live decision feed websocket.
type AttendanceHandler struct {
	service service.AttendanceService
	feed    service.LiveFeedService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(service service.AttendanceService, feed service.LiveFeedService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		feed:    feed,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register wires attendance routes under the provided router group.
func (h *AttendanceHandler) Register(router fiber.Router) {
	router.Use("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/live", websocket.New(h.live))

	router.Get("", h.list)
	router.Post("/windows/:id/sweep", h.sweep)
}

func (h *AttendanceHandler) list(c *fiber.Ctx) error {
	var query dto.AttendanceListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	response, err := h.service.List(c.Context(), query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attendance retrieved", response)
}

func (h *AttendanceHandler) sweep(c *fiber.Ctx) error {
	windowID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// The request body is optional; an empty body sweeps today.
	var req dto.SweepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	report, err := h.service.Sweep(c.Context(), windowID, req.Date)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "absence sweep completed", report)
}

func (h *AttendanceHandler) live(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	correlation, _ := conn.Locals("correlation_id").(string)

	h.feed.ServeConnection(conn, service.FeedConnectionOptions{
		CorrelationID: correlation,
		Context:       baseCtx,
	})
}

func (h *AttendanceHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var parseError *time.ParseError
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.As(err, &parseError):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid date")
	case errors.Is(err, service.ErrWindowNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "schedule window not found")
	default:
		h.logger.Error().Err(err).Msg("attendance request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

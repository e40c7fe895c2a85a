package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/service"
	"github.com/yousiff139-lang/LAS/internal/utils"
	"github.com/yousiff139-lang/LAS/pkg/faceclient"
)

// ScanHandler wires the scan ingestion endpoints: the push entry points
// terminals and gateways call, plus the review feed of unmatched scans.
type ScanHandler struct {
	scans  service.ScanService
	face   service.FaceService
	logger zerolog.Logger
}

// NewScanHandler constructs the handler.
func NewScanHandler(scans service.ScanService, face service.FaceService, logger zerolog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:  scans,
		face:   face,
		logger: logger.With().Str("component", "scan_handler").Logger(),
	}
}

// Register attaches scan endpoints to the router group.
func (h *ScanHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Post("/batch", h.submitBatch)
	router.Post("/face", h.faceCheckin)
	router.Get("/unprocessed", h.unprocessed)
}

func (h *ScanHandler) submit(c *fiber.Ctx) error {
	var payload dto.ScanSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	decision, err := h.scans.Submit(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "scan processed", decision)
}

func (h *ScanHandler) submitBatch(c *fiber.Ctx) error {
	var payload dto.ScanBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	summary, err := h.scans.SubmitBatch(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scan batch processed", summary)
}

func (h *ScanHandler) faceCheckin(c *fiber.Ctx) error {
	if h.face == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "face service not configured")
	}

	var payload dto.FaceCheckinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.face.Checkin(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "face check-in evaluated", result)
}

func (h *ScanHandler) unprocessed(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	logs, err := h.scans.Unprocessed(c.Context(), limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "unprocessed scans retrieved", logs)
}

func (h *ScanHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var parseError *time.ParseError
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.As(err, &parseError):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid timestamp")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrFaceNotEnrolled):
		return utils.SendError(c, fiber.StatusConflict, "student has no enrolled face")
	case errors.Is(err, faceclient.ErrRejected):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

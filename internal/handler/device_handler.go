package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/service"
	"github.com/yousiff139-lang/LAS/internal/utils"
)

// DeviceHandler manages the terminal registry and manual collection runs.
type DeviceHandler struct {
	devices service.DeviceService
	sync    service.DeviceSyncService
	logger  zerolog.Logger
}

// NewDeviceHandler constructs a device handler.
func NewDeviceHandler(devices service.DeviceService, sync service.DeviceSyncService, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		devices: devices,
		sync:    sync,
		logger:  logger.With().Str("component", "device_handler").Logger(),
	}
}

// Register wires device routes under the provided router group. The
// serial-ports route must come before the id routes so fiber does not
// capture it as a parameter.
func (h *DeviceHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/serial-ports", h.serialPorts)
	router.Get("/:id", h.get)
	router.Post("/:id/sync", h.triggerSync)
}

func (h *DeviceHandler) list(c *fiber.Ctx) error {
	devices, err := h.devices.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "devices retrieved", devices)
}

func (h *DeviceHandler) create(c *fiber.Ctx) error {
	var req dto.DeviceCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	device, err := h.devices.Create(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "device registered", device)
}

func (h *DeviceHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	device, err := h.devices.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "device retrieved", device)
}

func (h *DeviceHandler) triggerSync(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.sync.TriggerSync(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "sync completed", newSyncReportResponse(report))
}

func (h *DeviceHandler) serialPorts(c *fiber.Ctx) error {
	ports, err := h.sync.SerialPorts()
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "serial ports enumerated", ports)
}

func (h *DeviceHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrDeviceNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "device not found")
	case errors.Is(err, service.ErrSyncBusy):
		return utils.SendError(c, fiber.StatusConflict, "sync already running for device")
	case errors.Is(err, service.ErrTransportUnsupported):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Msg("device request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func newSyncReportResponse(report service.SyncReport) dto.SyncReportResponse {
	response := dto.SyncReportResponse{
		DeviceID:  report.DeviceID,
		Transport: report.Transport,
		Fetched:   report.Fetched,
		Processed: report.Processed,
		Dropped:   report.Dropped,
		Cleared:   report.Cleared,
		Success:   report.Success,
		Duration:  report.Duration.String(),
	}
	if report.Fetched > 0 {
		response.Summary = &dto.BatchSummaryResponse{
			Total:    report.Summary.Total,
			Outcomes: report.Summary.Outcomes,
			Failures: report.Summary.Failures,
		}
	}
	if report.Err != nil {
		response.Error = report.Err.Error()
	}
	return response
}

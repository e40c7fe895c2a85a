package handler

import (
	"bytes"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/importer"
	"github.com/yousiff139-lang/LAS/internal/service"
	"github.com/yousiff139-lang/LAS/internal/utils"
)

// ImportHandler accepts offline log dumps recovered from terminals or
// USB sticks and feeds them through the matching engine.
type ImportHandler struct {
	service service.ImportService
	logger  zerolog.Logger
}

// NewImportHandler constructs an import handler.
func NewImportHandler(service service.ImportService, logger zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		service: service,
		logger:  logger.With().Str("component", "import_handler").Logger(),
	}
}

// Register wires import routes.
func (h *ImportHandler) Register(router fiber.Router) {
	router.Post("", h.importFile)
}

func (h *ImportHandler) importFile(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	handle, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, handle); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file could not be read")
	}

	report, err := h.service.ImportFile(c.Context(), file.Filename, buf.Bytes())
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrFormat):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error().Err(err).Str("filename", file.Filename).Msg("import failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "import failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file imported", dto.ImportReportResponse{
		FileName: report.FileName,
		Format:   report.Format,
		Parsed:   report.Parsed,
		Skipped:  report.Skipped,
		Summary: dto.BatchSummaryResponse{
			Total:    report.Summary.Total,
			Outcomes: report.Summary.Outcomes,
			Failures: report.Summary.Failures,
		},
		ArchiveURL: report.ArchiveURL,
	})
}

package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/handler"
	"github.com/yousiff139-lang/LAS/internal/importer"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/internal/router"
	"github.com/yousiff139-lang/LAS/internal/service"
)

func setupImportApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openHandlerDB(t)
	logger := zerolog.Nop()

	audit := service.NewAuditService(repository.NewAuditRepository(db), nil, logger)
	imports := service.NewImportService(importer.New(time.UTC), newHandlerMatcher(db), nil, audit, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "las-test"}, router.Dependencies{
		ImportHandler: handler.NewImportHandler(imports, logger),
	})
	return app, db
}

func TestImportHandlerAcceptsLogDump(t *testing.T) {
	app, db := setupImportApp(t)

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "dump.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("user_id,time\n1042,2024-03-11 09:15:00\n1042,2024-03-11 09:20:00\nbroken\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/imports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var importBody struct {
		Success bool                     `json:"success"`
		Message string                   `json:"message"`
		Data    dto.ImportReportResponse `json:"data"`
	}
	decodeResponse(t, resp, &importBody)
	require.True(t, importBody.Success)
	require.Equal(t, "file imported", importBody.Message)
	require.Equal(t, "csv", importBody.Data.Format)
	require.Equal(t, 2, importBody.Data.Parsed)
	require.Equal(t, 1, importBody.Data.Skipped)
	require.Equal(t, 2, importBody.Data.Summary.Total)
	require.Equal(t, 1, importBody.Data.Summary.Outcomes[service.DecisionRecorded])
	require.Equal(t, 1, importBody.Data.Summary.Outcomes[service.DecisionDuplicate])

	var raws int64
	require.NoError(t, db.Model(&models.RawLog{}).Count(&raws).Error)
	require.EqualValues(t, 2, raws)
}

func TestImportHandlerRejectsBadInput(t *testing.T) {
	app, _ := setupImportApp(t)

	// No usable columns in the header fails the whole file.
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "dump.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/v1/imports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/v1/imports", bytes.NewReader(nil))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

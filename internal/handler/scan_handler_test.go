package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/handler"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/internal/router"
	"github.com/yousiff139-lang/LAS/internal/service"
	"github.com/yousiff139-lang/LAS/pkg/faceclient"
)

func openHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.ScheduleWindow{},
		&models.AttendanceRecord{},
		&models.RawLog{},
		&models.AuditEvent{},
		&models.Device{},
	))
	return db
}

func newHandlerMatcher(db *gorm.DB) service.MatchingService {
	logger := zerolog.Nop()
	audit := service.NewAuditService(repository.NewAuditRepository(db), nil, logger)
	return service.NewMatchingService(
		repository.NewRawLogRepository(db),
		repository.NewStudentRepository(db),
		repository.NewScheduleRepository(db),
		repository.NewAttendanceRepository(db),
		repository.NewDeviceRepository(db),
		audit,
		nil,
		time.UTC,
		logger,
	)
}

// stubVerifier replaces the external face service: every capture enrolls
// cleanly and authenticates against the first candidate encoding.
type stubVerifier struct{}

func (stubVerifier) Register(context.Context, string) (faceclient.Enrollment, error) {
	return faceclient.Enrollment{
		Encoding:       []float64{0.1, 0.2},
		EncodingJSON:   "[0.1,0.2]",
		AntiSpoofScore: 0.97,
	}, nil
}

func (stubVerifier) Authenticate(context.Context, string, []float64) (faceclient.Verification, error) {
	return faceclient.Verification{Match: true, Confidence: 0.91, Live: true, AntiSpoofScore: 0.97}, nil
}

func setupScanApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openHandlerDB(t)
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	matcher := newHandlerMatcher(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db), nil, logger)
	scans := service.NewScanService(matcher, validate, time.UTC, logger)
	face := service.NewFaceService(
		repository.NewStudentRepository(db),
		repository.NewRawLogRepository(db),
		matcher,
		stubVerifier{},
		nil,
		audit,
		time.UTC,
		logger,
	)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "las-test"}, router.Dependencies{
		ScanHandler: handler.NewScanHandler(scans, face, logger),
	})
	return app, db
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestScanHandlerSubmitDecidesAndRecords(t *testing.T) {
	app, db := setupScanApp(t)

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	resp := postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{
		BiometricUserID: "1042",
		Timestamp:       "2024-03-11T09:15:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var submitBody struct {
		Success bool                     `json:"success"`
		Message string                   `json:"message"`
		Data    dto.ScanDecisionResponse `json:"data"`
	}
	decodeResponse(t, resp, &submitBody)
	require.True(t, submitBody.Success)
	require.Equal(t, "scan processed", submitBody.Message)
	require.Equal(t, service.DecisionRecorded, submitBody.Data.Outcome)
	require.NotNil(t, submitBody.Data.Student)
	require.NotNil(t, submitBody.Data.Record)
	require.Equal(t, models.AttendancePresent, submitBody.Data.Record.Status)

	// The same scan again resolves to the duplicate decision, still 201.
	resp = postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{
		BiometricUserID: "1042",
		Timestamp:       "2024-03-11T09:20:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeResponse(t, resp, &submitBody)
	require.Equal(t, service.DecisionDuplicate, submitBody.Data.Outcome)

	resp = postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{BiometricUserID: "1042"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{
		BiometricUserID: "9999",
		Timestamp:       "2024-03-11T09:25:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	decodeResponse(t, resp, &submitBody)
	require.Equal(t, service.DecisionUnknownIdentity, submitBody.Data.Outcome)

	req := httptest.NewRequest("GET", "/api/v1/scans/unprocessed?limit=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var unprocessedBody struct {
		Success bool                 `json:"success"`
		Data    []dto.RawLogResponse `json:"data"`
	}
	decodeResponse(t, resp, &unprocessedBody)
	require.Len(t, unprocessedBody.Data, 1)
	require.Equal(t, "9999", unprocessedBody.Data[0].BiometricUserID)
}

func TestScanHandlerBatchAndFaceCheckin(t *testing.T) {
	app, db := setupScanApp(t)

	student := models.Student{
		FullName:        "Layla Ibrahim",
		BiometricUserID: "1042",
		Status:          models.StudentActive,
		Stage:           "stage-1",
		FaceEncoding:    datatypes.JSON("[0.1,0.2]"),
	}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Physiology", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	resp := postJSON(t, app, "/api/v1/scans/batch", dto.ScanBatchRequest{
		Events: []dto.ScanSubmitRequest{
			{BiometricUserID: "1042", Timestamp: "2024-03-11T09:05:00Z"},
			{BiometricUserID: "1042", Timestamp: "2024-03-11T09:06:00Z"},
		},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var batchBody struct {
		Success bool                     `json:"success"`
		Data    dto.BatchSummaryResponse `json:"data"`
	}
	decodeResponse(t, resp, &batchBody)
	require.Equal(t, 2, batchBody.Data.Total)
	require.Equal(t, 1, batchBody.Data.Outcomes[service.DecisionRecorded])
	require.Equal(t, 1, batchBody.Data.Outcomes[service.DecisionDuplicate])

	resp = postJSON(t, app, "/api/v1/scans/batch", dto.ScanBatchRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// A verified capture lands in the raw trail but no attendance record:
	// the modality filter keeps camera sightings out of the ledger.
	resp = postJSON(t, app, "/api/v1/scans/face", dto.FaceCheckinRequest{
		Image:     "aGVsbG8=",
		Timestamp: "2024-03-11T09:10:00Z",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var faceBody struct {
		Success bool                    `json:"success"`
		Data    dto.FaceCheckinResponse `json:"data"`
	}
	decodeResponse(t, resp, &faceBody)
	require.True(t, faceBody.Data.Match)
	require.NotNil(t, faceBody.Data.Student)
	require.NotNil(t, faceBody.Data.Decision)
	require.Equal(t, service.DecisionModalitySkipped, faceBody.Data.Decision.Outcome)
}

package handler_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/config"
	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/handler"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/internal/router"
	"github.com/yousiff139-lang/LAS/internal/service"
)

func setupAttendanceApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openHandlerDB(t)
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	matcher := newHandlerMatcher(db)
	attendance := service.NewAttendanceService(repository.NewAttendanceRepository(db), matcher, validate, time.UTC, logger)
	feed := service.NewLiveFeedService(nil, "las-test", nil, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "las-test"}, router.Dependencies{
		AttendanceHandler: handler.NewAttendanceHandler(attendance, feed, logger),
	})
	return app, db
}

func TestAttendanceHandlerListFilters(t *testing.T) {
	app, db := setupAttendanceApp(t)

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	repo := repository.NewAttendanceRepository(db)
	date := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	for i, status := range []string{models.AttendancePresent, models.AttendanceAbsent} {
		record := models.AttendanceRecord{
			StudentID:     student.ID,
			WindowID:      window.ID,
			Date:          date.AddDate(0, 0, i),
			ScanTimestamp: date.Add(9 * time.Hour),
			Status:        status,
			Source:        models.SourceFingerprint,
		}
		created, err := repo.Insert(context.Background(), &record)
		require.NoError(t, err)
		require.True(t, created)
	}

	req := httptest.NewRequest("GET", "/api/v1/attendance?status=present", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listBody struct {
		Success bool                       `json:"success"`
		Data    dto.AttendanceListResponse `json:"data"`
	}
	decodeResponse(t, resp, &listBody)
	require.True(t, listBody.Success)
	require.Len(t, listBody.Data.Items, 1)
	require.Equal(t, models.AttendancePresent, listBody.Data.Items[0].Status)
	require.EqualValues(t, 1, listBody.Data.Pagination.TotalItems)

	req = httptest.NewRequest("GET", "/api/v1/attendance?date_from=2024-03-12&date_to=2024-03-12", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &listBody)
	require.Len(t, listBody.Data.Items, 1)
	require.Equal(t, models.AttendanceAbsent, listBody.Data.Items[0].Status)

	req = httptest.NewRequest("GET", "/api/v1/attendance?status=late", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// The live feed route only accepts websocket upgrades.
	req = httptest.NewRequest("GET", "/api/v1/attendance/live", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestAttendanceHandlerSweep(t *testing.T) {
	app, db := setupAttendanceApp(t)

	student := models.Student{FullName: "Layla Ibrahim", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	resp := postJSON(t, app, fmt.Sprintf("/api/v1/attendance/windows/%d/sweep", window.ID), dto.SweepRequest{Date: "2024-03-18"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sweepBody struct {
		Success bool            `json:"success"`
		Data    dto.SweepReport `json:"data"`
	}
	decodeResponse(t, resp, &sweepBody)
	require.True(t, sweepBody.Success)
	require.Equal(t, 1, sweepBody.Data.TotalStudents)
	require.Equal(t, 1, sweepBody.Data.MarkedAbsent)
	require.Equal(t, 0, sweepBody.Data.AlreadyMarked)

	// Sweeping the same day again finds everyone already marked.
	resp = postJSON(t, app, fmt.Sprintf("/api/v1/attendance/windows/%d/sweep", window.ID), dto.SweepRequest{Date: "2024-03-18"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &sweepBody)
	require.Equal(t, 0, sweepBody.Data.MarkedAbsent)
	require.Equal(t, 1, sweepBody.Data.AlreadyMarked)

	resp = postJSON(t, app, "/api/v1/attendance/windows/9999/sweep", dto.SweepRequest{Date: "2024-03-18"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, app, fmt.Sprintf("/api/v1/attendance/windows/%d/sweep", window.ID), dto.SweepRequest{Date: "not-a-date"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

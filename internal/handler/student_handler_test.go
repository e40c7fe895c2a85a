package handler_test

import (
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

func setupStudentApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := openHandlerDB(t)
	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	audit := service.NewAuditService(repository.NewAuditRepository(db), nil, logger)
	students := service.NewStudentService(repository.NewStudentRepository(db), audit, validate, logger)
	matcher := newHandlerMatcher(db)
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
		StudentHandler: handler.NewStudentHandler(students, face, validate, logger),
	})
	return app, db
}

func TestStudentHandlerCreateGetAndConflict(t *testing.T) {
	app, _ := setupStudentApp(t)

	resp := postJSON(t, app, "/api/v1/students", dto.StudentCreateRequest{
		FullName:        "Ali Hassan",
		BiometricUserID: "1042",
		Stage:           "stage-1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var createBody struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    dto.StudentResponse `json:"data"`
	}
	decodeResponse(t, resp, &createBody)
	require.True(t, createBody.Success)
	require.Equal(t, "student registered", createBody.Message)
	require.NotZero(t, createBody.Data.ID)
	require.Equal(t, models.StudentActive, createBody.Data.Status)
	require.False(t, createBody.Data.FaceEnrolled)

	resp = postJSON(t, app, "/api/v1/students", dto.StudentCreateRequest{
		FullName:        "Somebody Else",
		BiometricUserID: "1042",
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/students", dto.StudentCreateRequest{
		FullName:        "X",
		BiometricUserID: "1043",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/students/%d", createBody.Data.ID), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var getBody struct {
		Data dto.StudentResponse `json:"data"`
	}
	decodeResponse(t, resp, &getBody)
	require.Equal(t, "Ali Hassan", getBody.Data.FullName)

	req = httptest.NewRequest("GET", "/api/v1/students/9999", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/students/not-a-number", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStudentHandlerListAndEnroll(t *testing.T) {
	app, db := setupStudentApp(t)

	for _, student := range []dto.StudentCreateRequest{
		{FullName: "Layla Ibrahim", BiometricUserID: "1042", Stage: "stage-1"},
		{FullName: "Omar Khalid", BiometricUserID: "1043", Stage: "stage-2"},
	} {
		resp := postJSON(t, app, "/api/v1/students", student)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	req := httptest.NewRequest("GET", "/api/v1/students?search=omar", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listBody struct {
		Data dto.StudentListResponse `json:"data"`
	}
	decodeResponse(t, resp, &listBody)
	require.Len(t, listBody.Data.Items, 1)
	require.Equal(t, "Omar Khalid", listBody.Data.Items[0].FullName)
	require.EqualValues(t, 1, listBody.Data.Pagination.TotalItems)

	var student models.Student
	require.NoError(t, db.Where("biometric_user_id = ?", "1042").First(&student).Error)

	resp = postJSON(t, app, fmt.Sprintf("/api/v1/students/%d/face", student.ID), dto.FaceEnrollRequest{Image: "aGVsbG8="})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var enrollBody struct {
		Data dto.FaceEnrollResponse `json:"data"`
	}
	decodeResponse(t, resp, &enrollBody)
	require.Equal(t, student.ID, enrollBody.Data.StudentID)
	require.InDelta(t, 0.97, enrollBody.Data.AntiSpoofScore, 0.001)

	require.NoError(t, db.First(&student, student.ID).Error)
	require.NotEmpty(t, student.FaceEncoding)

	resp = postJSON(t, app, "/api/v1/students/9999/face", dto.FaceEnrollRequest{Image: "aGVsbG8="})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, app, fmt.Sprintf("/api/v1/students/%d/face", student.ID), dto.FaceEnrollRequest{Image: "not base64!!"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

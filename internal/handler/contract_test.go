package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// The schemas pin the field names and types that terminal agents and push
// gateways integrate against.

const scanDecisionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["success", "message", "data"],
	"properties": {
		"success": {"type": "boolean"},
		"message": {"type": "string"},
		"data": {
			"type": "object",
			"required": ["outcome", "raw_log_id"],
			"properties": {
				"outcome": {"enum": ["recorded", "duplicate", "unknown_identity", "inactive_identity", "no_active_window", "modality_skipped"]},
				"raw_log_id": {"type": "integer", "minimum": 1},
				"student": {"$ref": "#/$defs/student"},
				"window": {"$ref": "#/$defs/window"},
				"record": {"$ref": "#/$defs/record"}
			}
		}
	},
	"$defs": {
		"student": {
			"type": "object",
			"required": ["id", "full_name", "biometric_user_id", "status", "stage", "face_enrolled"],
			"properties": {
				"id": {"type": "integer", "minimum": 1},
				"full_name": {"type": "string"},
				"biometric_user_id": {"type": "string"},
				"status": {"enum": ["active", "inactive", "suspended"]},
				"stage": {"type": "string"},
				"face_enrolled": {"type": "boolean"}
			}
		},
		"window": {
			"type": "object",
			"required": ["id", "source", "title", "stage", "start_minute", "end_minute", "status"],
			"properties": {
				"id": {"type": "integer", "minimum": 1},
				"source": {"enum": ["subject", "lecture"]},
				"title": {"type": "string"},
				"stage": {"type": "string"},
				"start_minute": {"type": "integer", "minimum": 0, "maximum": 1439},
				"end_minute": {"type": "integer", "minimum": 0, "maximum": 1439},
				"status": {"enum": ["active", "inactive"]}
			}
		},
		"record": {
			"type": "object",
			"required": ["id", "student_id", "window_id", "date", "scan_timestamp", "status", "source"],
			"properties": {
				"id": {"type": "integer", "minimum": 1},
				"student_id": {"type": "integer", "minimum": 1},
				"window_id": {"type": "integer", "minimum": 1},
				"date": {"type": "string"},
				"scan_timestamp": {"type": "string"},
				"status": {"enum": ["present", "absent"]},
				"source": {"enum": ["fingerprint", "system_auto"]}
			}
		}
	}
}`

const attendanceListSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["success", "message", "data"],
	"properties": {
		"success": {"type": "boolean"},
		"message": {"type": "string"},
		"data": {
			"type": "object",
			"required": ["items", "pagination"],
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["id", "student_id", "window_id", "date", "scan_timestamp", "status", "source"],
						"properties": {
							"id": {"type": "integer", "minimum": 1},
							"student_id": {"type": "integer", "minimum": 1},
							"window_id": {"type": "integer", "minimum": 1},
							"status": {"enum": ["present", "absent"]},
							"source": {"enum": ["fingerprint", "system_auto"]}
						}
					}
				},
				"pagination": {
					"type": "object",
					"required": ["page", "page_size", "total_items", "total_pages"],
					"properties": {
						"page": {"type": "integer", "minimum": 1},
						"page_size": {"type": "integer", "minimum": 1},
						"total_items": {"type": "integer", "minimum": 0},
						"total_pages": {"type": "integer", "minimum": 1}
					}
				}
			}
		}
	}
}`

func TestScanDecisionContract(t *testing.T) {
	schema, err := jsonschema.CompileString("scan_decision.schema.json", scanDecisionSchema)
	require.NoError(t, err)

	app, db := setupScanApp(t)

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	// A committed decision carries the full nested student/window/record view.
	resp := postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{
		BiometricUserID: "1042",
		Timestamp:       "2024-03-11T09:15:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, schema.Validate(decodeBody(t, resp)))

	// A dropped decision is the same envelope with the nested views absent.
	resp = postJSON(t, app, "/api/v1/scans", dto.ScanSubmitRequest{
		BiometricUserID: "9999",
		Timestamp:       "2024-03-11T09:20:00Z",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NoError(t, schema.Validate(decodeBody(t, resp)))
}

func TestAttendanceListContract(t *testing.T) {
	schema, err := jsonschema.CompileString("attendance_list.schema.json", attendanceListSchema)
	require.NoError(t, err)

	app, db := setupAttendanceApp(t)

	student := models.Student{FullName: "Ali Hassan", BiometricUserID: "1042", Status: models.StudentActive, Stage: "stage-1"}
	require.NoError(t, db.Create(&student).Error)
	day := 1
	window := models.ScheduleWindow{Source: models.WindowSourceSubject, Title: "Anatomy", Stage: "stage-1", DayOfWeek: &day, StartMinute: 540, EndMinute: 600, Status: models.WindowActive}
	require.NoError(t, db.Create(&window).Error)

	repo := repository.NewAttendanceRepository(db)
	date := time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	record := models.AttendanceRecord{
		StudentID:     student.ID,
		WindowID:      window.ID,
		Date:          date,
		ScanTimestamp: date.Add(9 * time.Hour),
		Status:        models.AttendancePresent,
		Source:        models.SourceFingerprint,
	}
	created, err := repo.Insert(context.Background(), &record)
	require.NoError(t, err)
	require.True(t, created)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, schema.Validate(decodeBody(t, resp)))
}

func decodeBody(t *testing.T, resp *http.Response) interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

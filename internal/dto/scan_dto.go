package dto

import (
	"time"

	"github.com/yousiff139-lang/LAS/internal/models"
)

const isoLayout = time.RFC3339

// ScanSubmitRequest is a single scan event pushed over HTTP by a terminal
// agent or gateway.
type ScanSubmitRequest struct {
	BiometricUserID string `json:"biometric_user_id" validate:"required,max=64"`
	Timestamp       string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DeviceID        *uint  `json:"device_id"`
	Modality        string `json:"modality" validate:"omitempty,oneof=fingerprint face card"`
}

// Event converts the request into the normalized scan shape. The timestamp
// is re-expressed in the service location so window matching sees the same
// wall clock the device showed.
func (r ScanSubmitRequest) Event(loc *time.Location) (models.ScanEvent, error) {
	ts, err := time.Parse(isoLayout, r.Timestamp)
	if err != nil {
		return models.ScanEvent{}, err
	}

	modality := r.Modality
	if modality == "" {
		modality = models.ModalityFingerprint
	}

	return models.ScanEvent{
		BiometricUserID: r.BiometricUserID,
		Timestamp:       ts.In(loc),
		DeviceID:        r.DeviceID,
		Modality:        modality,
		Origin:          models.OriginPush,
	}, nil
}

// ScanBatchRequest carries multiple scan events in one call.
type ScanBatchRequest struct {
	Events []ScanSubmitRequest `json:"events" validate:"required,min=1,max=1000,dive"`
}

// ScanDecisionResponse describes what the matching engine did with one scan.
type ScanDecisionResponse struct {
	Outcome  string              `json:"outcome"`
	RawLogID uint                `json:"raw_log_id"`
	Student  *StudentResponse    `json:"student,omitempty"`
	Window   *WindowResponse     `json:"window,omitempty"`
	Record   *AttendanceResponse `json:"record,omitempty"`
}

// NewScanDecisionResponse assembles the outcome view, converting whatever
// resolution steps the engine completed.
func NewScanDecisionResponse(outcome string, rawLogID uint, student *models.Student, window *models.ScheduleWindow, record *models.AttendanceRecord) ScanDecisionResponse {
	response := ScanDecisionResponse{Outcome: outcome, RawLogID: rawLogID}
	if student != nil {
		converted := NewStudentResponse(*student)
		response.Student = &converted
	}
	if window != nil {
		converted := NewWindowResponse(*window)
		response.Window = &converted
	}
	if record != nil {
		converted := NewAttendanceResponse(*record)
		response.Record = &converted
	}
	return response
}

// BatchSummaryResponse aggregates decisions for a batch of scans.
type BatchSummaryResponse struct {
	Total    int            `json:"total"`
	Outcomes map[string]int `json:"outcomes"`
	Failures int            `json:"failures"`
}

// RawLogResponse is the audit-trail view of a received scan.
type RawLogResponse struct {
	ID              uint      `json:"id"`
	DeviceID        *uint     `json:"device_id,omitempty"`
	BiometricUserID string    `json:"biometric_user_id"`
	ScannedAt       time.Time `json:"scanned_at"`
	Modality        string    `json:"modality"`
	Origin          string    `json:"origin"`
	Processed       bool      `json:"processed"`
	DropReason      *string   `json:"drop_reason,omitempty"`
	EvidenceURL     *string   `json:"evidence_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewRawLogResponse converts a model into a DTO.
func NewRawLogResponse(model models.RawLog) RawLogResponse {
	return RawLogResponse{
		ID:              model.ID,
		DeviceID:        model.DeviceID,
		BiometricUserID: model.BiometricUserID,
		ScannedAt:       model.ScannedAt,
		Modality:        model.Modality,
		Origin:          model.Origin,
		Processed:       model.Processed,
		DropReason:      model.DropReason,
		EvidenceURL:     model.EvidenceURL,
		CreatedAt:       model.CreatedAt,
	}
}

// NewRawLogResponseSlice converts a slice of models into DTOs.
func NewRawLogResponseSlice(logs []models.RawLog) []RawLogResponse {
	responses := make([]RawLogResponse, 0, len(logs))
	for _, log := range logs {
		responses = append(responses, NewRawLogResponse(log))
	}

	return responses
}

// FeedEvent is the live feed wire format pushed to websocket subscribers.
type FeedEvent struct {
	Kind            string              `json:"kind"`
	Outcome         string              `json:"outcome,omitempty"`
	At              time.Time           `json:"at"`
	BiometricUserID string              `json:"biometric_user_id,omitempty"`
	Student         *StudentResponse    `json:"student,omitempty"`
	Window          *WindowResponse     `json:"window,omitempty"`
	Record          *AttendanceResponse `json:"record,omitempty"`
	Sweep           *SweepReport        `json:"sweep,omitempty"`
}

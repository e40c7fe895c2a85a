package dto

import (
	"time"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// AttendanceListQuery filters the attendance listing endpoint.
type AttendanceListQuery struct {
	StudentID uint   `query:"student_id"`
	WindowID  uint   `query:"window_id"`
	Status    string `query:"status" validate:"omitempty,oneof=present absent"`
	DateFrom  string `query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `query:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Page      int    `query:"page"`
	PageSize  int    `query:"page_size"`
}

// AttendanceResponse is the serialized attendance record returned to clients.
type AttendanceResponse struct {
	ID            uint      `json:"id"`
	StudentID     uint      `json:"student_id"`
	WindowID      uint      `json:"window_id"`
	Date          time.Time `json:"date"`
	ScanTimestamp time.Time `json:"scan_timestamp"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	RawLogID      *uint     `json:"raw_log_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewAttendanceResponse converts a model into a DTO.
func NewAttendanceResponse(model models.AttendanceRecord) AttendanceResponse {
	return AttendanceResponse{
		ID:            model.ID,
		StudentID:     model.StudentID,
		WindowID:      model.WindowID,
		Date:          model.Date,
		ScanTimestamp: model.ScanTimestamp,
		Status:        model.Status,
		Source:        model.Source,
		RawLogID:      model.RawLogID,
		CreatedAt:     model.CreatedAt,
	}
}

// AttendanceListResponse contains paginated attendance records.
type AttendanceListResponse struct {
	Items      []AttendanceResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAttendanceResponseSlice converts a slice of models into DTOs.
func NewAttendanceResponseSlice(records []models.AttendanceRecord) []AttendanceResponse {
	responses := make([]AttendanceResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewAttendanceResponse(record))
	}

	return responses
}

// SweepRequest asks for absence marking over one window; the window id
// travels in the URL. An empty date means today.
type SweepRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// SweepReport summarises one absence sweep run.
type SweepReport struct {
	WindowID      uint      `json:"window_id"`
	Date          time.Time `json:"date"`
	TotalStudents int       `json:"total_students"`
	AlreadyMarked int       `json:"already_marked"`
	MarkedAbsent  int       `json:"marked_absent"`
}

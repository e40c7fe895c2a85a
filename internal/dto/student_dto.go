package dto

import (
	"time"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// StudentCreateRequest describes the payload for enrolling a student.
type StudentCreateRequest struct {
	FullName        string `json:"full_name" validate:"required,min=3,max=255"`
	BiometricUserID string `json:"biometric_user_id" validate:"required,max=64"`
	Stage           string `json:"stage" validate:"omitempty,max=64"`
	Status          string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

// StudentListQuery filters the student listing endpoint.
type StudentListQuery struct {
	Search   string `query:"search"`
	Status   string `query:"status" validate:"omitempty,oneof=active inactive suspended"`
	Stage    string `query:"stage"`
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
}

// FaceEnrollRequest carries the enrollment capture for a student.
type FaceEnrollRequest struct {
	Image string `json:"image" validate:"required,base64"`
}

// StudentResponse is the serialized representation returned to API clients.
type StudentResponse struct {
	ID              uint      `json:"id"`
	FullName        string    `json:"full_name"`
	BiometricUserID string    `json:"biometric_user_id"`
	Status          string    `json:"status"`
	Stage           string    `json:"stage"`
	FaceEnrolled    bool      `json:"face_enrolled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:              model.ID,
		FullName:        model.FullName,
		BiometricUserID: model.BiometricUserID,
		Status:          model.Status,
		Stage:           model.Stage,
		FaceEnrolled:    len(model.FaceEncoding) > 0,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// StudentListResponse contains paginated students.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponseSlice converts a slice of models into DTOs.
func NewStudentResponseSlice(students []models.Student) []StudentResponse {
	responses := make([]StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, NewStudentResponse(student))
	}

	return responses
}

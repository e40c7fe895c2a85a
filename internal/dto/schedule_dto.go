package dto

import (
	"time"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// WindowCreateRequest describes the payload for creating a schedule window.
// Exactly one of day_of_week and specific_date must be set.
type WindowCreateRequest struct {
	Source       string  `json:"source" validate:"omitempty,oneof=subject lecture"`
	Title        string  `json:"title" validate:"required,min=2,max=255"`
	Stage        string  `json:"stage" validate:"omitempty,max=64"`
	DayOfWeek    *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	SpecificDate *string `json:"specific_date" validate:"omitempty,datetime=2006-01-02"`
	StartMinute  int     `json:"start_minute" validate:"min=0,max=1439"`
	EndMinute    int     `json:"end_minute" validate:"min=0,max=1439,gtefield=StartMinute"`
	Status       string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

// WindowResponse is the serialized schedule window returned to API clients.
type WindowResponse struct {
	ID           uint       `json:"id"`
	Source       string     `json:"source"`
	Title        string     `json:"title"`
	Stage        string     `json:"stage"`
	DayOfWeek    *int       `json:"day_of_week,omitempty"`
	SpecificDate *time.Time `json:"specific_date,omitempty"`
	StartMinute  int        `json:"start_minute"`
	EndMinute    int        `json:"end_minute"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewWindowResponse converts a model into a DTO.
func NewWindowResponse(model models.ScheduleWindow) WindowResponse {
	return WindowResponse{
		ID:           model.ID,
		Source:       model.Source,
		Title:        model.Title,
		Stage:        model.Stage,
		DayOfWeek:    model.DayOfWeek,
		SpecificDate: model.SpecificDate,
		StartMinute:  model.StartMinute,
		EndMinute:    model.EndMinute,
		Status:       model.Status,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewWindowResponseSlice converts a slice of models into DTOs.
func NewWindowResponseSlice(windows []models.ScheduleWindow) []WindowResponse {
	responses := make([]WindowResponse, 0, len(windows))
	for _, window := range windows {
		responses = append(responses, NewWindowResponse(window))
	}

	return responses
}

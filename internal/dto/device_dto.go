package dto

import (
	"time"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// DeviceCreateRequest describes the payload for registering a terminal.
type DeviceCreateRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=255"`
	Transport     string `json:"transport" validate:"required,oneof=tcp serial usb push"`
	Host          string `json:"host" validate:"required_if=Transport tcp,omitempty,hostname|ip"`
	Port          int    `json:"port" validate:"omitempty,min=1,max=65535"`
	SerialPort    string `json:"serial_port" validate:"required_if=Transport serial,omitempty,max=128"`
	SerialAddress int    `json:"serial_address" validate:"omitempty,min=0,max=255"`
	BaudRate      int    `json:"baud_rate" validate:"omitempty,min=1200,max=230400"`
	Active        *bool  `json:"active"`
}

// DeviceResponse is the serialized device returned to API clients.
type DeviceResponse struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Transport     string     `json:"transport"`
	Host          string     `json:"host,omitempty"`
	Port          int        `json:"port,omitempty"`
	SerialPort    string     `json:"serial_port,omitempty"`
	SerialAddress int        `json:"serial_address,omitempty"`
	BaudRate      int        `json:"baud_rate,omitempty"`
	Active        bool       `json:"active"`
	LastSyncTime  *time.Time `json:"last_sync_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewDeviceResponse converts a model into a DTO.
func NewDeviceResponse(model models.Device) DeviceResponse {
	return DeviceResponse{
		ID:            model.ID,
		Name:          model.Name,
		Transport:     model.Transport,
		Host:          model.Host,
		Port:          model.Port,
		SerialPort:    model.SerialPort,
		SerialAddress: model.SerialAddress,
		BaudRate:      model.BaudRate,
		Active:        model.Active,
		LastSyncTime:  model.LastSyncTime,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewDeviceResponseSlice converts a slice of models into DTOs.
func NewDeviceResponseSlice(devices []models.Device) []DeviceResponse {
	responses := make([]DeviceResponse, 0, len(devices))
	for _, device := range devices {
		responses = append(responses, NewDeviceResponse(device))
	}

	return responses
}

// SyncReportResponse summarises one collection run against a device.
type SyncReportResponse struct {
	DeviceID  uint                  `json:"device_id"`
	Transport string                `json:"transport"`
	Fetched   int                   `json:"fetched"`
	Processed int                   `json:"processed"`
	Dropped   int                   `json:"dropped"`
	Cleared   bool                  `json:"cleared"`
	Success   bool                  `json:"success"`
	Duration  string                `json:"duration"`
	Summary   *BatchSummaryResponse `json:"summary,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// ImportReportResponse summarises one archive file import.
type ImportReportResponse struct {
	FileName   string               `json:"file_name"`
	Format     string               `json:"format"`
	Parsed     int                  `json:"parsed"`
	Skipped    int                  `json:"skipped"`
	Summary    BatchSummaryResponse `json:"summary"`
	ArchiveURL *string              `json:"archive_url,omitempty"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student statuses. Only active students can be matched to attendance.
const (
	StudentActive    = "active"
	StudentInactive  = "inactive"
	StudentSuspended = "suspended"
)

// Student represents an enrolled identity that biometric scans resolve against.
type Student struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	FullName        string         `gorm:"size:255;not null" json:"full_name"`
	BiometricUserID string         `gorm:"size:64;uniqueIndex;not null" json:"biometric_user_id"`
	Status          string         `gorm:"size:32;not null;default:active" json:"status"`
	Stage           string         `gorm:"size:64;index" json:"stage"`
	FaceEncoding    datatypes.JSON `gorm:"type:json" json:"face_encoding,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

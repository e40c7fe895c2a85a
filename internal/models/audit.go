package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEvent is an append-only trace of attendance decisions and sync
// activity, persisted and mirrored to the message bus.
type AuditEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Action    string            `gorm:"size:64;not null;index" json:"action"`
	Actor     string            `gorm:"size:128" json:"actor"`
	Target    string            `gorm:"size:128;index" json:"target"`
	Details   datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt time.Time         `json:"created_at"`
}

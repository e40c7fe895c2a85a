package models

import "time"

// Scan modalities. Only fingerprint scans are reconciled into attendance;
// face and card scans are recorded and dropped.
const (
	ModalityFingerprint = "fingerprint"
	ModalityFace        = "face"
	ModalityCard        = "card"
)

// Scan origins.
const (
	OriginDevice = "device"
	OriginImport = "import"
	OriginPush   = "push"
)

// ScanEvent is the normalized shape every ingestion path produces. It is
// transient; reaching the matching engine converts it into exactly one
// RawLog.
type ScanEvent struct {
	BiometricUserID string
	Timestamp       time.Time
	DeviceID        *uint
	Modality        string
	Origin          string
}

// RawLog is the durable trail of every received scan, written before any
// matching decision. Content is write-once; Processed and DropReason are
// the only fields that change afterwards. Unprocessed rows with a drop
// reason are scans awaiting review (unknown identity, no window).
type RawLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	DeviceID        *uint     `gorm:"index" json:"device_id,omitempty"`
	BiometricUserID string    `gorm:"size:64;index" json:"biometric_user_id"`
	ScannedAt       time.Time `gorm:"not null;index" json:"scanned_at"`
	Modality        string    `gorm:"size:16;not null" json:"modality"`
	Origin          string    `gorm:"size:16;not null" json:"origin"`
	Processed       bool      `gorm:"not null;default:false;index" json:"processed"`
	DropReason      *string   `gorm:"size:64" json:"drop_reason,omitempty"`
	EvidenceURL     *string   `gorm:"size:512" json:"evidence_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

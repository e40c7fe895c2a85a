package models

import "time"

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// Attendance sources.
const (
	SourceFingerprint = "fingerprint"
	SourceSystemAuto  = "system_auto"
)

// AttendanceRecord is the authoritative attendance decision. The composite
// unique index on (student, window, date) is the invariant that holds under
// concurrent producers; inserts go through a conflict-ignoring write and a
// record is never updated once created.
type AttendanceRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentID     uint      `gorm:"not null;uniqueIndex:idx_attendance_identity" json:"student_id"`
	WindowID      uint      `gorm:"not null;uniqueIndex:idx_attendance_identity" json:"window_id"`
	Date          time.Time `gorm:"type:date;not null;uniqueIndex:idx_attendance_identity" json:"date"`
	ScanTimestamp time.Time `gorm:"not null" json:"scan_timestamp"`
	Status        string    `gorm:"size:16;not null" json:"status"`
	Source        string    `gorm:"size:16;not null" json:"source"`
	RawLogID      *uint     `gorm:"index" json:"raw_log_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

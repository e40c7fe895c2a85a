package models

import "time"

// Window sources. Lecture rows are the legacy schedule and are consulted
// only when no subject window matches a scan.
const (
	WindowSourceSubject = "subject"
	WindowSourceLecture = "lecture"
)

// Window statuses.
const (
	WindowActive   = "active"
	WindowInactive = "inactive"
)

// ScheduleWindow represents a recurring or date-specific interval during
// which attendance can be recorded for one academic stage. Recurrence is
// either a weekday (DayOfWeek set) or an exact date (SpecificDate set);
// the [StartMinute, EndMinute] interval is inclusive on both ends.
type ScheduleWindow struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Source       string     `gorm:"size:16;not null;default:subject;index" json:"source"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Stage        string     `gorm:"size:64;index" json:"stage"`
	DayOfWeek    *int       `json:"day_of_week,omitempty"`
	SpecificDate *time.Time `gorm:"type:date" json:"specific_date,omitempty"`
	StartMinute  int        `gorm:"not null" json:"start_minute"`
	EndMinute    int        `gorm:"not null" json:"end_minute"`
	Status       string     `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StartAt returns the window's opening instant on the given calendar date.
// Absence records created by the sweep are timestamped with this value.
func (w ScheduleWindow) StartAt(date time.Time) time.Time {
	d := DateOnly(date)
	return d.Add(time.Duration(w.StartMinute) * time.Minute)
}

// MinuteOfDay converts an instant to minutes since that day's midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateOnly truncates an instant to its calendar date in the same location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

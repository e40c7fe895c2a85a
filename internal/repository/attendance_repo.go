package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	StudentID uint
	WindowID  uint
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceRepository persists attendance decisions. Insert relies on the
// composite unique key and reports whether the row was actually written,
// so a concurrent duplicate surfaces as inserted=false instead of an
// error; that conflict path is the storage-level dedup guarantee.
type AttendanceRepository interface {
	Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error)
	Exists(ctx context.Context, studentID, windowID uint, date time.Time) (bool, error)
	ExistingStudentIDs(ctx context.Context, windowID uint, date time.Time) (map[uint]struct{}, error)
	List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, int64, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository constructs an attendance repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	record.Date = models.DateOnly(record.Date)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "window_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attendanceRepository) Exists(ctx context.Context, studentID, windowID uint, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("student_id = ? AND window_id = ? AND date = ?", studentID, windowID, models.DateOnly(date)).
		Count(&count).Error
	return count > 0, err
}

func (r *attendanceRepository) ExistingStudentIDs(ctx context.Context, windowID uint, date time.Time) (map[uint]struct{}, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("window_id = ? AND date = ?", windowID, models.DateOnly(date)).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	present := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	return present, nil
}

func (r *attendanceRepository) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AttendanceRecord{})

	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.WindowID != 0 {
		query = query.Where("window_id = ?", filter.WindowID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", models.DateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", models.DateOnly(*filter.DateTo))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 || size > 200 {
		size = 50
	}

	var records []models.AttendanceRecord
	err := query.Order("date DESC, scan_timestamp DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error
	return records, total, err
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// ScheduleRepository resolves the windows a scan can fall into. ActiveAt
// is the matching engine's lookup; ordering by start minute then id is the
// documented tie-break when several windows overlap an instant.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uint) (models.ScheduleWindow, error)
	ActiveAt(ctx context.Context, at time.Time, source string) ([]models.ScheduleWindow, error)
	List(ctx context.Context) ([]models.ScheduleWindow, error)
	Create(ctx context.Context, window *models.ScheduleWindow) error
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository constructs a schedule repository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uint) (models.ScheduleWindow, error) {
	var window models.ScheduleWindow
	if err := r.db.WithContext(ctx).First(&window, id).Error; err != nil {
		return models.ScheduleWindow{}, err
	}
	return window, nil
}

func (r *scheduleRepository) ActiveAt(ctx context.Context, at time.Time, source string) ([]models.ScheduleWindow, error) {
	minute := models.MinuteOfDay(at)
	weekday := int(at.Weekday())
	date := models.DateOnly(at)

	var windows []models.ScheduleWindow
	err := r.db.WithContext(ctx).
		Where("status = ? AND source = ?", models.WindowActive, source).
		Where("(day_of_week IS NOT NULL AND day_of_week = ?) OR (specific_date IS NOT NULL AND specific_date = ?)", weekday, date).
		Where("start_minute <= ? AND end_minute >= ?", minute, minute).
		Order("start_minute ASC, id ASC").
		Find(&windows).Error
	return windows, err
}

func (r *scheduleRepository) List(ctx context.Context) ([]models.ScheduleWindow, error) {
	var windows []models.ScheduleWindow
	err := r.db.WithContext(ctx).
		Order("source ASC, start_minute ASC, id ASC").
		Find(&windows).Error
	return windows, err
}

func (r *scheduleRepository) Create(ctx context.Context, window *models.ScheduleWindow) error {
	return r.db.WithContext(ctx).Create(window).Error
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// RawLogRepository owns the durable scan trail. Rows are inserted before
// any matching decision; Resolve is the single mutation afterwards.
type RawLogRepository interface {
	Insert(ctx context.Context, log *models.RawLog) error
	Resolve(ctx context.Context, id uint, processed bool, dropReason *string) error
	SetEvidenceURL(ctx context.Context, id uint, url string) error
	ListUnprocessed(ctx context.Context, limit int) ([]models.RawLog, error)
}

type rawLogRepository struct {
	db *gorm.DB
}

// NewRawLogRepository constructs a raw log repository.
func NewRawLogRepository(db *gorm.DB) RawLogRepository {
	return &rawLogRepository{db: db}
}

func (r *rawLogRepository) Insert(ctx context.Context, log *models.RawLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *rawLogRepository) Resolve(ctx context.Context, id uint, processed bool, dropReason *string) error {
	return r.db.WithContext(ctx).
		Model(&models.RawLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":   processed,
			"drop_reason": dropReason,
		}).Error
}

func (r *rawLogRepository) SetEvidenceURL(ctx context.Context, id uint, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.RawLog{}).
		Where("id = ?", id).
		Update("evidence_url", url).Error
}

func (r *rawLogRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.RawLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var logs []models.RawLog
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("scanned_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

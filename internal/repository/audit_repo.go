package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// AuditRepository is the append-only trail of operational actions.
type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *auditRepository) List(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var events []models.AuditEvent
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

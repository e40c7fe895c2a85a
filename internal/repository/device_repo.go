package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// DeviceRepository is the registry of terminals the scheduler polls and
// scans attribute themselves to.
type DeviceRepository interface {
	GetByID(ctx context.Context, id uint) (models.Device, error)
	FindActive(ctx context.Context) ([]models.Device, error)
	FindActiveByTransport(ctx context.Context, transport string) ([]models.Device, error)
	List(ctx context.Context) ([]models.Device, error)
	Create(ctx context.Context, device *models.Device) error
	UpdateLastSync(ctx context.Context, id uint, at time.Time) error
}

type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository constructs a device repository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) GetByID(ctx context.Context, id uint) (models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, id).Error; err != nil {
		return models.Device{}, err
	}
	return device, nil
}

func (r *deviceRepository) FindActive(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) FindActiveByTransport(ctx context.Context, transport string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("active = ? AND transport = ?", true, transport).
		Order("id ASC").
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) List(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).Order("id ASC").Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) Create(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *deviceRepository) UpdateLastSync(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Update("last_sync_time", at).Error
}

package repository

import (
	"context"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
)

// StudentFilter narrows student listings.
type StudentFilter struct {
	Search   string
	Status   string
	Stage    string
	Page     int
	PageSize int
}

// StudentRepository provides identity lookups for the matching engine and
// the registry endpoints. The engine only reads; writes serve enrollment.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	FindByBiometricID(ctx context.Context, biometricID string) (models.Student, error)
	FindActiveByStage(ctx context.Context, stage string) ([]models.Student, error)
	FindWithFaceEncodings(ctx context.Context) ([]models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateFaceEncoding(ctx context.Context, id uint, encoding datatypes.JSON) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) FindByBiometricID(ctx context.Context, biometricID string) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Where("biometric_user_id = ?", biometricID).
		First(&student).Error
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

// FindActiveByStage returns active students in one stage; an empty stage
// returns every active student. Stage-less lecture windows sweep the whole
// roster.
func (r *studentRepository) FindActiveByStage(ctx context.Context, stage string) ([]models.Student, error) {
	query := r.db.WithContext(ctx).Where("status = ?", models.StudentActive)
	if stage != "" {
		query = query.Where("stage = ?", stage)
	}

	var students []models.Student
	err := query.Order("id ASC").Find(&students).Error
	return students, err
}

func (r *studentRepository) FindWithFaceEncodings(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("status = ? AND face_encoding IS NOT NULL", models.StudentActive).
		Find(&students).Error
	return students, err
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR biometric_user_id LIKE ?", like, like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Stage != "" {
		query = query.Where("stage = ?", filter.Stage)
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

	var students []models.Student
	err := query.Order("full_name ASC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&students).Error
	return students, total, err
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) UpdateFaceEncoding(ctx context.Context, id uint, encoding datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", id).
		Update("face_encoding", encoding).Error
}

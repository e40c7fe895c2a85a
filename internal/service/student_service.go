package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// ErrStudentNotFound indicates the requested student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// ErrBiometricIDTaken indicates another student already owns the submitted
// biometric user id.
var ErrBiometricIDTaken = errors.New("biometric user id already registered")

// StudentService manages the identity registry the matching engine resolves
// scans against.
type StudentService interface {
	Create(ctx context.Context, req dto.StudentCreateRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	List(ctx context.Context, query dto.StudentListQuery) (dto.StudentListResponse, error)
}

type studentService struct {
	repo      repository.StudentRepository
	audit     AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentService builds the student registry service.
func NewStudentService(repo repository.StudentRepository, audit AuditService, validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Create(ctx context.Context, req dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	if _, err := s.repo.FindByBiometricID(ctx, req.BiometricUserID); err == nil {
		return dto.StudentResponse{}, ErrBiometricIDTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		FullName:        req.FullName,
		BiometricUserID: req.BiometricUserID,
		Stage:           req.Stage,
		Status:          req.Status,
	}
	if student.Status == "" {
		student.Status = models.StudentActive
	}

	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	s.logger.Info().
		Uint("student_id", student.ID).
		Str("biometric_user_id", student.BiometricUserID).
		Msg("student registered")
	s.audit.Record(ctx, "student.create", "api", fmt.Sprintf("student:%d", student.ID), map[string]interface{}{
		"biometric_user_id": student.BiometricUserID,
		"stage":             student.Stage,
	})

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}

		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) List(ctx context.Context, query dto.StudentListQuery) (dto.StudentListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.StudentListResponse{}, err
	}

	filter := repository.StudentFilter{
		Search:   query.Search,
		Status:   query.Status,
		Stage:    query.Stage,
		Page:     normalizePage(query.Page),
		PageSize: clampPageSize(query.PageSize),
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	return dto.StudentListResponse{
		Items:      dto.NewStudentResponseSlice(students),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

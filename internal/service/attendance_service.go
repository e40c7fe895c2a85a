package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// ErrWindowNotFound indicates the requested schedule window does not exist.
var ErrWindowNotFound = errors.New("schedule window not found")

// AttendanceService exposes the attendance ledger and the absence sweep.
type AttendanceService interface {
	List(ctx context.Context, query dto.AttendanceListQuery) (dto.AttendanceListResponse, error)
	Sweep(ctx context.Context, windowID uint, date string) (dto.SweepReport, error)
}

type attendanceService struct {
	repo      repository.AttendanceRepository
	matcher   MatchingService
	validator *validator.Validate
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAttendanceService builds the attendance query service.
func NewAttendanceService(repo repository.AttendanceRepository, matcher MatchingService, validate *validator.Validate, loc *time.Location, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		repo:      repo,
		matcher:   matcher,
		validator: validate,
		loc:       loc,
		logger:    logger.With().Str("component", "attendance_service").Logger(),
		now:       time.Now,
	}
}

func (s *attendanceService) List(ctx context.Context, query dto.AttendanceListQuery) (dto.AttendanceListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AttendanceListResponse{}, err
	}

	filter := repository.AttendanceFilter{
		StudentID: query.StudentID,
		WindowID:  query.WindowID,
		Status:    query.Status,
		Page:      normalizePage(query.Page),
		PageSize:  clampPageSize(query.PageSize),
	}

	if query.DateFrom != "" {
		from, err := time.ParseInLocation("2006-01-02", query.DateFrom, s.loc)
		if err != nil {
			return dto.AttendanceListResponse{}, fmt.Errorf("invalid date_from: %w", err)
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.ParseInLocation("2006-01-02", query.DateTo, s.loc)
		if err != nil {
			return dto.AttendanceListResponse{}, fmt.Errorf("invalid date_to: %w", err)
		}
		filter.DateTo = &to
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	return dto.AttendanceListResponse{
		Items:      dto.NewAttendanceResponseSlice(records),
		Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *attendanceService) Sweep(ctx context.Context, windowID uint, date string) (dto.SweepReport, error) {
	day := s.now().In(s.loc)
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, s.loc)
		if err != nil {
			return dto.SweepReport{}, fmt.Errorf("invalid date: %w", err)
		}
		day = parsed
	}

	report, err := s.matcher.AutoMarkAbsent(ctx, windowID, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SweepReport{}, ErrWindowNotFound
		}

		return dto.SweepReport{}, err
	}

	return dto.SweepReport{
		WindowID:      report.WindowID,
		Date:          report.Date,
		TotalStudents: report.TotalStudents,
		AlreadyMarked: report.AlreadyMarked,
		MarkedAbsent:  report.MarkedAbsent,
	}, nil
}

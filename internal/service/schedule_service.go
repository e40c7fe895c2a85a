package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// ErrWindowRecurrence indicates the window sets neither or both of the
// recurrence fields. A window is either weekly (day_of_week) or a one-off
// (specific_date), never both.
var ErrWindowRecurrence = errors.New("exactly one of day_of_week and specific_date must be set")

// ScheduleService manages the window registry the matching engine resolves
// scans into.
type ScheduleService interface {
	Create(ctx context.Context, req dto.WindowCreateRequest) (dto.WindowResponse, error)
	List(ctx context.Context) ([]dto.WindowResponse, error)
}

type scheduleService struct {
	repo      repository.ScheduleRepository
	audit     AuditService
	validator *validator.Validate
	loc       *time.Location
	logger    zerolog.Logger
}

// NewScheduleService builds the schedule registry service.
func NewScheduleService(repo repository.ScheduleRepository, audit AuditService, validate *validator.Validate, loc *time.Location, logger zerolog.Logger) ScheduleService {
	return &scheduleService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		loc:       loc,
		logger:    logger.With().Str("component", "schedule_service").Logger(),
	}
}

func (s *scheduleService) Create(ctx context.Context, req dto.WindowCreateRequest) (dto.WindowResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.WindowResponse{}, err
	}

	if (req.DayOfWeek == nil) == (req.SpecificDate == nil) {
		return dto.WindowResponse{}, ErrWindowRecurrence
	}

	window := models.ScheduleWindow{
		Source:      req.Source,
		Title:       req.Title,
		Stage:       req.Stage,
		DayOfWeek:   req.DayOfWeek,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		Status:      req.Status,
	}
	if window.Source == "" {
		window.Source = models.WindowSourceSubject
	}
	if window.Status == "" {
		window.Status = models.WindowActive
	}

	if req.SpecificDate != nil {
		date, err := time.ParseInLocation("2006-01-02", *req.SpecificDate, s.loc)
		if err != nil {
			return dto.WindowResponse{}, fmt.Errorf("invalid specific date: %w", err)
		}
		date = models.DateOnly(date)
		window.SpecificDate = &date
	}

	if err := s.repo.Create(ctx, &window); err != nil {
		return dto.WindowResponse{}, err
	}

	s.logger.Info().
		Uint("window_id", window.ID).
		Str("source", window.Source).
		Str("title", window.Title).
		Msg("schedule window created")
	s.audit.Record(ctx, "schedule.create", "api", fmt.Sprintf("window:%d", window.ID), map[string]interface{}{
		"title":  window.Title,
		"source": window.Source,
	})

	return dto.NewWindowResponse(window), nil
}

func (s *scheduleService) List(ctx context.Context) ([]dto.WindowResponse, error) {
	windows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	return dto.NewWindowResponseSlice(windows), nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
)

// ScanService is the HTTP edge of the matching engine: it validates pushed
// payloads, normalizes them into scan events and shapes decisions for the
// API envelope.
type ScanService interface {
	Submit(ctx context.Context, req dto.ScanSubmitRequest) (dto.ScanDecisionResponse, error)
	SubmitBatch(ctx context.Context, req dto.ScanBatchRequest) (dto.BatchSummaryResponse, error)
	Unprocessed(ctx context.Context, limit int) ([]dto.RawLogResponse, error)
}

type scanService struct {
	matcher   MatchingService
	validator *validator.Validate
	loc       *time.Location
	logger    zerolog.Logger
}

// NewScanService builds the scan ingestion service.
func NewScanService(matcher MatchingService, validate *validator.Validate, loc *time.Location, logger zerolog.Logger) ScanService {
	return &scanService{
		matcher:   matcher,
		validator: validate,
		loc:       loc,
		logger:    logger.With().Str("component", "scan_service").Logger(),
	}
}

func (s *scanService) Submit(ctx context.Context, req dto.ScanSubmitRequest) (dto.ScanDecisionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ScanDecisionResponse{}, err
	}

	event, err := req.Event(s.loc)
	if err != nil {
		return dto.ScanDecisionResponse{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	decision, err := s.matcher.ProcessScan(ctx, event)
	if err != nil {
		return dto.ScanDecisionResponse{}, err
	}

	return dto.NewScanDecisionResponse(decision.Outcome, decision.RawLogID, decision.Student, decision.Window, decision.Record), nil
}

func (s *scanService) SubmitBatch(ctx context.Context, req dto.ScanBatchRequest) (dto.BatchSummaryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchSummaryResponse{}, err
	}

	events := make([]models.ScanEvent, 0, len(req.Events))
	for _, item := range req.Events {
		event, err := item.Event(s.loc)
		if err != nil {
			return dto.BatchSummaryResponse{}, fmt.Errorf("invalid timestamp %q: %w", item.Timestamp, err)
		}
		events = append(events, event)
	}

	summary := s.matcher.ProcessBatch(ctx, events)
	s.logger.Info().Int("total", summary.Total).Int("failures", summary.Failures).Msg("scan batch processed")

	return dto.BatchSummaryResponse{Total: summary.Total, Outcomes: summary.Outcomes, Failures: summary.Failures}, nil
}

func (s *scanService) Unprocessed(ctx context.Context, limit int) ([]dto.RawLogResponse, error) {
	logs, err := s.matcher.UnprocessedLogs(ctx, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewRawLogResponseSlice(logs), nil
}

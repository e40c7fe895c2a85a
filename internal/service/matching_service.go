package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/observability"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

// Matching decisions. Every scan ends in exactly one of these.
const (
	DecisionRecorded         = "recorded"
	DecisionDuplicate        = "duplicate"
	DecisionUnknownIdentity  = "unknown_identity"
	DecisionInactiveIdentity = "inactive_identity"
	DecisionNoActiveWindow   = "no_active_window"
	DecisionModalitySkipped  = "modality_skipped"
)

// ScanDecision is the outcome of pushing one scan through the engine.
// Student and Window are filled as far as resolution got.
type ScanDecision struct {
	Outcome  string
	RawLogID uint
	Student  *models.Student
	Window   *models.ScheduleWindow
	Record   *models.AttendanceRecord
}

// BatchSummary aggregates decisions over a batch of scans.
type BatchSummary struct {
	Total    int
	Outcomes map[string]int
	Failures int
}

// AbsenceReport summarises one sweep run.
type AbsenceReport struct {
	WindowID      uint
	Date          time.Time
	TotalStudents int
	AlreadyMarked int
	MarkedAbsent  int
}

// FeedBroadcaster pushes matching outcomes to live subscribers.
type FeedBroadcaster interface {
	BroadcastScan(ctx context.Context, decision ScanDecision, raw models.RawLog)
	BroadcastSweep(ctx context.Context, report AbsenceReport)
}

// MatchingService turns raw scan events into attendance decisions. The
// engine writes the raw log before any judgement, so a scan is never lost
// even when it cannot be matched; the conflict-ignoring attendance insert
// makes the whole pipeline safe to replay.
type MatchingService interface {
	ProcessScan(ctx context.Context, event models.ScanEvent) (ScanDecision, error)
	ProcessBatch(ctx context.Context, events []models.ScanEvent) BatchSummary
	AutoMarkAbsent(ctx context.Context, windowID uint, date time.Time) (AbsenceReport, error)
	UnprocessedLogs(ctx context.Context, limit int) ([]models.RawLog, error)
}

type matchingService struct {
	rawLogs    repository.RawLogRepository
	students   repository.StudentRepository
	schedules  repository.ScheduleRepository
	attendance repository.AttendanceRepository
	devices    repository.DeviceRepository
	audit      AuditService
	feed       FeedBroadcaster
	logger     zerolog.Logger
	tracer     trace.Tracer
	loc        *time.Location
}

// NewMatchingService builds the scan matching engine.
func NewMatchingService(
	rawLogs repository.RawLogRepository,
	students repository.StudentRepository,
	schedules repository.ScheduleRepository,
	attendance repository.AttendanceRepository,
	devices repository.DeviceRepository,
	audit AuditService,
	feed FeedBroadcaster,
	loc *time.Location,
	logger zerolog.Logger,
) MatchingService {
	if loc == nil {
		loc = time.Local
	}

	return &matchingService{
		rawLogs:    rawLogs,
		students:   students,
		schedules:  schedules,
		attendance: attendance,
		devices:    devices,
		audit:      audit,
		feed:       feed,
		logger:     logger.With().Str("component", "matching_service").Logger(),
		tracer:     otel.Tracer("github.com/yousiff139-lang/LAS/internal/service/matching"),
		loc:        loc,
	}
}

func (s *matchingService) ProcessScan(ctx context.Context, event models.ScanEvent) (ScanDecision, error) {
	if event.Timestamp.IsZero() {
		return ScanDecision{}, fmt.Errorf("scan timestamp is required")
	}
	if event.Modality == "" {
		event.Modality = models.ModalityFingerprint
	}

	scannedAt := event.Timestamp.In(s.loc)

	ctx, span := s.tracer.Start(ctx, "matching.process_scan", trace.WithAttributes(
		attribute.String("biometric_user_id", event.BiometricUserID),
		attribute.String("modality", event.Modality),
		attribute.String("origin", event.Origin),
	))
	defer span.End()

	raw := models.RawLog{
		DeviceID:        event.DeviceID,
		BiometricUserID: event.BiometricUserID,
		ScannedAt:       scannedAt,
		Modality:        event.Modality,
		Origin:          event.Origin,
	}
	if err := s.rawLogs.Insert(ctx, &raw); err != nil {
		span.RecordError(err)
		return ScanDecision{}, fmt.Errorf("persist raw log: %w", err)
	}

	decision, err := s.decide(ctx, raw, scannedAt)
	if err != nil {
		span.RecordError(err)
		return decision, err
	}

	observability.ScanDecisions().WithLabelValues(decision.Outcome).Inc()
	span.SetAttributes(attribute.String("decision", decision.Outcome))

	s.logger.Info().
		Str("biometric_user_id", raw.BiometricUserID).
		Time("scanned_at", scannedAt).
		Str("origin", raw.Origin).
		Str("decision", decision.Outcome).
		Msg("scan processed")

	if s.feed != nil {
		s.feed.BroadcastScan(ctx, decision, raw)
	}

	return decision, nil
}

// decide walks the resolution chain for one persisted raw log. Drops mark
// the log unprocessed with a reason so it surfaces in the review queue;
// skips and commits mark it processed.
func (s *matchingService) decide(ctx context.Context, raw models.RawLog, scannedAt time.Time) (ScanDecision, error) {
	decision := ScanDecision{RawLogID: raw.ID}

	if raw.Modality != models.ModalityFingerprint {
		decision.Outcome = DecisionModalitySkipped
		return decision, s.resolveRawLog(ctx, raw.ID, true, DecisionModalitySkipped)
	}

	student, err := s.students.FindByBiometricID(ctx, raw.BiometricUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			decision.Outcome = DecisionUnknownIdentity
			return decision, s.resolveRawLog(ctx, raw.ID, false, DecisionUnknownIdentity)
		}
		return decision, err
	}
	decision.Student = &student

	if student.Status != models.StudentActive {
		decision.Outcome = DecisionInactiveIdentity
		return decision, s.resolveRawLog(ctx, raw.ID, false, DecisionInactiveIdentity)
	}

	window, found, err := s.resolveWindow(ctx, student, scannedAt)
	if err != nil {
		return decision, err
	}
	if !found {
		decision.Outcome = DecisionNoActiveWindow
		return decision, s.resolveRawLog(ctx, raw.ID, false, DecisionNoActiveWindow)
	}
	decision.Window = &window

	rawID := raw.ID
	record := models.AttendanceRecord{
		StudentID:     student.ID,
		WindowID:      window.ID,
		Date:          models.DateOnly(scannedAt),
		ScanTimestamp: scannedAt,
		Status:        models.AttendancePresent,
		Source:        models.SourceFingerprint,
		RawLogID:      &rawID,
	}
	inserted, err := s.attendance.Insert(ctx, &record)
	if err != nil {
		return decision, err
	}
	if !inserted {
		decision.Outcome = DecisionDuplicate
		return decision, s.resolveRawLog(ctx, raw.ID, true, DecisionDuplicate)
	}

	observability.AttendanceMarks().WithLabelValues(models.AttendancePresent).Inc()
	decision.Outcome = DecisionRecorded
	decision.Record = &record

	if raw.DeviceID != nil && s.devices != nil {
		if err := s.devices.UpdateLastSync(ctx, *raw.DeviceID, scannedAt); err != nil {
			s.logger.Warn().Err(err).Uint("device_id", *raw.DeviceID).Msg("failed to stamp device last sync")
		}
	}

	return decision, s.rawLogs.Resolve(ctx, raw.ID, true, nil)
}

// resolveWindow finds the first window admitting the student at the given
// instant. Subject windows take precedence; the legacy lecture schedule is
// only consulted when no subject window matches. Within one source the
// repository orders candidates by start minute then id, which is the
// tie-break for overlaps.
func (s *matchingService) resolveWindow(ctx context.Context, student models.Student, at time.Time) (models.ScheduleWindow, bool, error) {
	for _, source := range []string{models.WindowSourceSubject, models.WindowSourceLecture} {
		windows, err := s.schedules.ActiveAt(ctx, at, source)
		if err != nil {
			return models.ScheduleWindow{}, false, err
		}
		for _, window := range windows {
			if windowAdmits(window, student) {
				return window, true, nil
			}
		}
	}

	return models.ScheduleWindow{}, false, nil
}

// windowAdmits reports whether a window applies to a student. Stage-less
// windows admit everyone.
func windowAdmits(window models.ScheduleWindow, student models.Student) bool {
	return window.Stage == "" || strings.EqualFold(window.Stage, student.Stage)
}

func (s *matchingService) resolveRawLog(ctx context.Context, id uint, processed bool, reason string) error {
	return s.rawLogs.Resolve(ctx, id, processed, &reason)
}

func (s *matchingService) ProcessBatch(ctx context.Context, events []models.ScanEvent) BatchSummary {
	summary := BatchSummary{Total: len(events), Outcomes: make(map[string]int)}

	for i, event := range events {
		if ctx.Err() != nil {
			s.logger.Warn().Int("remaining", summary.Total-i).Msg("batch processing interrupted")
			break
		}

		decision, err := s.ProcessScan(ctx, event)
		if err != nil {
			summary.Failures++
			s.logger.Error().Err(err).Str("biometric_user_id", event.BiometricUserID).Msg("failed to process scan event")
			continue
		}
		summary.Outcomes[decision.Outcome]++
	}

	return summary
}

func (s *matchingService) AutoMarkAbsent(ctx context.Context, windowID uint, date time.Time) (AbsenceReport, error) {
	day := models.DateOnly(date.In(s.loc))

	ctx, span := s.tracer.Start(ctx, "matching.auto_mark_absent", trace.WithAttributes(
		attribute.Int("window_id", int(windowID)),
		attribute.String("date", day.Format("2006-01-02")),
	))
	defer span.End()

	window, err := s.schedules.GetByID(ctx, windowID)
	if err != nil {
		span.RecordError(err)
		return AbsenceReport{}, err
	}

	students, err := s.students.FindActiveByStage(ctx, window.Stage)
	if err != nil {
		span.RecordError(err)
		return AbsenceReport{}, err
	}

	existing, err := s.attendance.ExistingStudentIDs(ctx, window.ID, day)
	if err != nil {
		span.RecordError(err)
		return AbsenceReport{}, err
	}

	report := AbsenceReport{WindowID: window.ID, Date: day, TotalStudents: len(students)}
	startAt := window.StartAt(day)

	for _, student := range students {
		if _, marked := existing[student.ID]; marked {
			report.AlreadyMarked++
			continue
		}

		record := models.AttendanceRecord{
			StudentID:     student.ID,
			WindowID:      window.ID,
			Date:          day,
			ScanTimestamp: startAt,
			Status:        models.AttendanceAbsent,
			Source:        models.SourceSystemAuto,
		}
		inserted, err := s.attendance.Insert(ctx, &record)
		if err != nil {
			span.RecordError(err)
			return report, err
		}
		if !inserted {
			// A scan landed between the snapshot and this insert.
			report.AlreadyMarked++
			continue
		}

		observability.AttendanceMarks().WithLabelValues(models.AttendanceAbsent).Inc()
		report.MarkedAbsent++
	}

	s.logger.Info().
		Uint("window_id", window.ID).
		Str("date", day.Format("2006-01-02")).
		Int("marked_absent", report.MarkedAbsent).
		Int("already_marked", report.AlreadyMarked).
		Msg("absence sweep completed")

	if s.audit != nil {
		s.audit.Record(ctx, "attendance.sweep", "system", fmt.Sprintf("window:%d", window.ID), map[string]interface{}{
			"date":           day.Format("2006-01-02"),
			"marked_absent":  report.MarkedAbsent,
			"already_marked": report.AlreadyMarked,
		})
	}
	if s.feed != nil {
		s.feed.BroadcastSweep(ctx, report)
	}

	return report, nil
}

func (s *matchingService) UnprocessedLogs(ctx context.Context, limit int) ([]models.RawLog, error) {
	return s.rawLogs.ListUnprocessed(ctx, limit)
}

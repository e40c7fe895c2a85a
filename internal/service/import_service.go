package service

import (
	"bytes"
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yousiff139-lang/LAS/internal/importer"
	"github.com/yousiff139-lang/LAS/internal/observability"
	"github.com/yousiff139-lang/LAS/pkg/cloudinary"
)

// ImportReport summarises one offline file import: how the file parsed
// and what the matching engine made of the recovered events.
type ImportReport struct {
	FileName   string
	Format     string
	Parsed     int
	Skipped    int
	Summary    BatchSummary
	ArchiveURL *string
}

// ImportService feeds offline log dumps through the matching engine.
type ImportService interface {
	ImportFile(ctx context.Context, filename string, data []byte) (ImportReport, error)
}

type importService struct {
	importer *importer.Importer
	matcher  MatchingService
	archive  *cloudinary.Service
	audit    AuditService
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewImportService builds the offline import pipeline. archive is
// optional; when present every accepted file is stored for later review.
func NewImportService(
	im *importer.Importer,
	matcher MatchingService,
	archive *cloudinary.Service,
	audit AuditService,
	logger zerolog.Logger,
) ImportService {
	return &importService{
		importer: im,
		matcher:  matcher,
		archive:  archive,
		audit:    audit,
		logger:   logger.With().Str("component", "import_service").Logger(),
		tracer:   otel.Tracer("github.com/yousiff139-lang/LAS/internal/service/import"),
	}
}

func (s *importService) ImportFile(ctx context.Context, filename string, data []byte) (ImportReport, error) {
	ctx, span := s.tracer.Start(ctx, "import.file", trace.WithAttributes(
		attribute.String("filename", filename),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	result, err := s.importer.Parse(data, filename)
	if err != nil {
		span.RecordError(err)
		observability.ImportRows().WithLabelValues("unknown", "rejected").Inc()
		return ImportReport{FileName: filename}, err
	}

	format := string(result.Format)
	observability.ImportRows().WithLabelValues(format, "parsed").Add(float64(len(result.Events)))
	observability.ImportRows().WithLabelValues(format, "skipped").Add(float64(result.Skipped))

	report := ImportReport{
		FileName: filename,
		Format:   format,
		Parsed:   len(result.Events),
		Skipped:  result.Skipped,
		Summary:  s.matcher.ProcessBatch(ctx, result.Events),
	}

	if s.archive != nil {
		url, err := s.archive.Upload(ctx, filename, bytes.NewReader(data))
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", filename).Msg("failed to archive import file")
		} else {
			report.ArchiveURL = &url
		}
	}

	s.logger.Info().
		Str("filename", filename).
		Str("format", format).
		Int("parsed", report.Parsed).
		Int("skipped", report.Skipped).
		Int("recorded", report.Summary.Outcomes[DecisionRecorded]).
		Int("failed", report.Summary.Failures).
		Msg("import finished")

	if s.audit != nil {
		s.audit.Record(ctx, "attendance.import", "system", filename, map[string]interface{}{
			"format":   format,
			"parsed":   report.Parsed,
			"skipped":  report.Skipped,
			"recorded": report.Summary.Outcomes[DecisionRecorded],
			"failed":   report.Summary.Failures,
		})
	}

	return report, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yousiff139-lang/LAS/internal/dto"
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
	"github.com/yousiff139-lang/LAS/pkg/cloudinary"
	"github.com/yousiff139-lang/LAS/pkg/faceclient"
)

// ErrFaceNotEnrolled indicates a student without a stored face encoding.
var ErrFaceNotEnrolled = errors.New("student has no enrolled face")

// FaceVerifier is the slice of the face client this service uses.
type FaceVerifier interface {
	Register(ctx context.Context, imageBase64 string) (faceclient.Enrollment, error)
	Authenticate(ctx context.Context, imageBase64 string, knownEncoding []float64) (faceclient.Verification, error)
}

// FaceService enrolls student faces and turns verified captures into scan
// events. Verification is delegated to the external face sidecar; this
// side owns encoding storage, candidate selection and the hand-off to the
// matching engine.
type FaceService interface {
	Enroll(ctx context.Context, studentID uint, imageBase64 string) (dto.FaceEnrollResponse, error)
	Checkin(ctx context.Context, req dto.FaceCheckinRequest) (dto.FaceCheckinResponse, error)
}

type faceService struct {
	students repository.StudentRepository
	rawLogs  repository.RawLogRepository
	matcher  MatchingService
	verifier FaceVerifier
	evidence *cloudinary.Service
	audit    AuditService
	loc      *time.Location
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewFaceService builds the face enrollment and check-in service.
// evidence is optional; when present matched captures are stored and
// linked to their raw log.
func NewFaceService(
	students repository.StudentRepository,
	rawLogs repository.RawLogRepository,
	matcher MatchingService,
	verifier FaceVerifier,
	evidence *cloudinary.Service,
	audit AuditService,
	loc *time.Location,
	logger zerolog.Logger,
) FaceService {
	if loc == nil {
		loc = time.Local
	}

	return &faceService{
		students: students,
		rawLogs:  rawLogs,
		matcher:  matcher,
		verifier: verifier,
		evidence: evidence,
		audit:    audit,
		loc:      loc,
		logger:   logger.With().Str("component", "face_service").Logger(),
		tracer:   otel.Tracer("github.com/yousiff139-lang/LAS/internal/service/face"),
		now:      time.Now,
	}
}

func (s *faceService) Enroll(ctx context.Context, studentID uint, imageBase64 string) (dto.FaceEnrollResponse, error) {
	ctx, span := s.tracer.Start(ctx, "face.enroll", trace.WithAttributes(
		attribute.Int("student_id", int(studentID)),
	))
	defer span.End()

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FaceEnrollResponse{}, ErrStudentNotFound
		}
		return dto.FaceEnrollResponse{}, err
	}

	enrollment, err := s.verifier.Register(ctx, imageBase64)
	if err != nil {
		span.RecordError(err)
		return dto.FaceEnrollResponse{}, err
	}

	if err := s.students.UpdateFaceEncoding(ctx, student.ID, datatypes.JSON(enrollment.EncodingJSON)); err != nil {
		span.RecordError(err)
		return dto.FaceEnrollResponse{}, err
	}

	s.logger.Info().Uint("student_id", student.ID).Msg("face enrolled")
	if s.audit != nil {
		s.audit.Record(ctx, "student.face_enroll", "api", fmt.Sprintf("student:%d", student.ID), map[string]interface{}{
			"anti_spoof_score": enrollment.AntiSpoofScore,
		})
	}

	return dto.FaceEnrollResponse{StudentID: student.ID, AntiSpoofScore: enrollment.AntiSpoofScore}, nil
}

func (s *faceService) Checkin(ctx context.Context, req dto.FaceCheckinRequest) (dto.FaceCheckinResponse, error) {
	ctx, span := s.tracer.Start(ctx, "face.checkin", trace.WithAttributes(
		attribute.Bool("claimed_identity", req.BiometricUserID != ""),
	))
	defer span.End()

	at := s.now().In(s.loc)
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return dto.FaceCheckinResponse{}, fmt.Errorf("parse timestamp: %w", err)
		}
		at = parsed.In(s.loc)
	}

	candidates, err := s.candidates(ctx, req.BiometricUserID)
	if err != nil {
		return dto.FaceCheckinResponse{}, err
	}

	matched, verification, err := s.identify(ctx, req.Image, candidates)
	if err != nil {
		span.RecordError(err)
		return dto.FaceCheckinResponse{}, err
	}

	response := dto.FaceCheckinResponse{
		Match:      matched != nil,
		Confidence: verification.Confidence,
		Live:       verification.Live,
	}
	if matched == nil {
		s.logger.Info().Int("candidates", len(candidates)).Msg("face matched nobody")
		return response, nil
	}

	studentResp := dto.NewStudentResponse(*matched)
	response.Student = &studentResp

	decision, err := s.matcher.ProcessScan(ctx, models.ScanEvent{
		BiometricUserID: matched.BiometricUserID,
		Timestamp:       at,
		DeviceID:        req.DeviceID,
		Modality:        models.ModalityFace,
		Origin:          models.OriginPush,
	})
	if err != nil {
		return response, err
	}

	if s.evidence != nil {
		name := fmt.Sprintf("checkin-%d-%d", matched.ID, at.Unix())
		if url, err := s.evidence.UploadBase64(ctx, name, req.Image); err != nil {
			s.logger.Warn().Err(err).Msg("failed to store check-in evidence")
		} else if err := s.rawLogs.SetEvidenceURL(ctx, decision.RawLogID, url); err != nil {
			s.logger.Warn().Err(err).Msg("failed to link check-in evidence")
		}
	}

	decisionResp := dto.NewScanDecisionResponse(decision.Outcome, decision.RawLogID, decision.Student, decision.Window, decision.Record)
	response.Decision = &decisionResp

	return response, nil
}

// candidates picks the encodings to verify against: the claimed identity
// alone, or every enrolled active student when no identity is claimed.
func (s *faceService) candidates(ctx context.Context, biometricID string) ([]models.Student, error) {
	if biometricID == "" {
		return s.students.FindWithFaceEncodings(ctx)
	}

	student, err := s.students.FindByBiometricID(ctx, biometricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if len(student.FaceEncoding) == 0 {
		return nil, ErrFaceNotEnrolled
	}
	return []models.Student{student}, nil
}

// identify verifies the capture against each candidate and keeps the most
// confident match. Image rejections (spoof, no face) abort immediately;
// corrupt stored encodings only lose that candidate.
func (s *faceService) identify(ctx context.Context, image string, candidates []models.Student) (*models.Student, faceclient.Verification, error) {
	var best *models.Student
	var bestVerification faceclient.Verification
	var firstVerification faceclient.Verification
	verified := false

	for i := range candidates {
		var encoding []float64
		if err := json.Unmarshal(candidates[i].FaceEncoding, &encoding); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", candidates[i].ID).Msg("skipping corrupt face encoding")
			continue
		}

		verification, err := s.verifier.Authenticate(ctx, image, encoding)
		if err != nil {
			return nil, faceclient.Verification{}, err
		}
		if !verified {
			firstVerification = verification
			verified = true
		}
		if verification.Match && (best == nil || verification.Confidence > bestVerification.Confidence) {
			best = &candidates[i]
			bestVerification = verification
		}
	}

	if best == nil {
		// Liveness and confidence of the capture itself, for the
		// no-match answer.
		return nil, firstVerification, nil
	}
	return best, bestVerification, nil
}

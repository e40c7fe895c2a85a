package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/repository"
)

const auditSubject = "las.audit"

// AuditService records operational actions. Recording is best effort;
// failures are logged and never surfaced to the caller, so an audit outage
// cannot block scan processing or device syncs.
type AuditService interface {
	Record(ctx context.Context, action, actor, target string, details map[string]interface{})
	Recent(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type auditService struct {
	repo   repository.AuditRepository
	nats   *nats.Conn
	logger zerolog.Logger
}

// NewAuditService builds the audit trail writer.
func NewAuditService(repo repository.AuditRepository, natsConn *nats.Conn, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		nats:   natsConn,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

type auditMessage struct {
	Action  string                 `json:"action"`
	Actor   string                 `json:"actor"`
	Target  string                 `json:"target"`
	Details map[string]interface{} `json:"details,omitempty"`
	At      time.Time              `json:"at"`
}

func (s *auditService) Record(ctx context.Context, action, actor, target string, details map[string]interface{}) {
	event := models.AuditEvent{
		Action:  action,
		Actor:   actor,
		Target:  target,
		Details: datatypes.JSONMap(details),
	}

	if err := s.repo.Insert(ctx, &event); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit event")
	}

	if s.nats != nil {
		payload, err := json.Marshal(auditMessage{
			Action:  action,
			Actor:   actor,
			Target:  target,
			Details: details,
			At:      time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal audit message")
			return
		}
		if err := s.nats.Publish(auditSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish audit message")
		}
	}
}

func (s *auditService) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return s.repo.List(ctx, limit)
}

package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
)

// AiAuditService records and serves the append-only decision trail of a
// session. Entries are never updated or deleted.
type AiAuditService struct {
	auditLogs repository.AiAuditLogRepository
	sessions  repository.AiSessionRepository
}

func NewAiAuditService(auditLogs repository.AiAuditLogRepository, sessions repository.AiSessionRepository) *AiAuditService {
	return &AiAuditService{auditLogs: auditLogs, sessions: sessions}
}

func (s *AiAuditService) Record(ctx context.Context, params model.RecordAuditParams) (*model.AiAuditLog, error) {
	session, err := s.sessions.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("AI session")
	}

	switch params.ActionType {
	case model.AuditActionApprove, model.AuditActionReject:
		if params.ApprovedBy == nil || *params.ApprovedBy == "" {
			return nil, apperrors.MissingRequired("approvedBy")
		}
	case model.AuditActionToolCall:
		if params.ToolName == nil || *params.ToolName == "" {
			return nil, apperrors.MissingRequired("toolName")
		}
	}

	entry, err := s.auditLogs.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("record audit entry: %w", err)
	}

	log.Debug().
		Str("sessionId", entry.SessionID).
		Str("actionType", string(entry.ActionType)).
		Str("entryId", entry.ID).
		Msg("audit entry recorded")

	return entry, nil
}

func (s *AiAuditService) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]model.AiAuditLog, int, error) {
	entries, err := s.auditLogs.FindBySessionID(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	total, err := s.auditLogs.CountBySessionID(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}
	return entries, total, nil
}

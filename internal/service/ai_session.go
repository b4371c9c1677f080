package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
)

// AiSessionService orchestrates AI hand-off sessions. A conversation holds at
// most one active session; the database enforces this, so a start that loses
// a race comes back as a session conflict instead of a second active row.
type AiSessionService struct {
	sessions      repository.AiSessionRepository
	auditLogs     repository.AiAuditLogRepository
	conversations repository.ConversationRepository
	ingest        *IngestService
}

func NewAiSessionService(
	sessions repository.AiSessionRepository,
	auditLogs repository.AiAuditLogRepository,
	conversations repository.ConversationRepository,
	ingest *IngestService,
) *AiSessionService {
	return &AiSessionService{
		sessions:      sessions,
		auditLogs:     auditLogs,
		conversations: conversations,
		ingest:        ingest,
	}
}

func (s *AiSessionService) Start(ctx context.Context, params model.StartAiSessionParams) (*model.AiSession, error) {
	conv, err := s.conversations.FindByID(ctx, params.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}

	session, err := s.sessions.Create(ctx, params)
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ActiveSessionConstraint) {
			return nil, apperrors.SessionConflict()
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("conversationId", session.ConversationID).
		Str("mode", string(session.Mode)).
		Msg("ai session started")

	return session, nil
}

func (s *AiSessionService) FindByID(ctx context.Context, id string) (*model.AiSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("AI session")
	}
	return session, nil
}

func (s *AiSessionService) FindActive(ctx context.Context, conversationID string) (*model.AiSession, error) {
	return s.sessions.FindActiveByConversationID(ctx, conversationID)
}

func (s *AiSessionService) ListByConversation(ctx context.Context, conversationID string) ([]model.AiSession, error) {
	return s.sessions.FindByConversationID(ctx, conversationID)
}

// MergeContext folds partial state into an active session. Completed and
// paused sessions are immutable.
func (s *AiSessionService) MergeContext(ctx context.Context, id string, partial model.JSONMap) (*model.AiSession, error) {
	session, err := s.sessions.MergeContext(ctx, id, partial)
	if err != nil {
		return nil, fmt.Errorf("merge context: %w", err)
	}
	if session == nil {
		return nil, s.notActiveError(ctx, id)
	}
	return session, nil
}

func (s *AiSessionService) AdvanceStep(ctx context.Context, id, step string) (*model.AiSession, error) {
	if err := s.sessions.UpdateStep(ctx, id, step); err != nil {
		return nil, fmt.Errorf("update step: %w", err)
	}
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("AI session")
	}
	if session.Status != model.AiSessionActive {
		return nil, apperrors.InvalidTransition(string(session.Status), string(model.AiSessionActive))
	}
	return session, nil
}

func (s *AiSessionService) Pause(ctx context.Context, id string) (*model.AiSession, error) {
	return s.transition(ctx, id, model.AiSessionPaused)
}

func (s *AiSessionService) Complete(ctx context.Context, id string) (*model.AiSession, error) {
	return s.transition(ctx, id, model.AiSessionCompleted)
}

func (s *AiSessionService) transition(ctx context.Context, id string, to model.AiSessionStatus) (*model.AiSession, error) {
	moved, err := s.sessions.Transition(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("transition session: %w", err)
	}
	if !moved {
		return nil, s.notActiveError(ctx, id)
	}

	log.Info().Str("sessionId", id).Str("status", string(to)).Msg("ai session transitioned")

	return s.sessions.FindByID(ctx, id)
}

type AutoSendParams struct {
	SessionID   string
	Content     string
	ContentType model.ContentType
}

// AutoSend dispatches an AI-composed reply. It refuses unless the session is
// active and a human has approved the latest generated draft, then records
// the dispatch itself in the audit trail.
func (s *AiSessionService) AutoSend(ctx context.Context, params AutoSendParams) (*model.Message, error) {
	session, err := s.sessions.FindByID(ctx, params.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("AI session")
	}
	if session.Status != model.AiSessionActive {
		return nil, apperrors.InvalidTransition(string(session.Status), string(model.AiSessionActive))
	}

	approved, err := s.auditLogs.HasApprovalSinceLastGeneration(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("check approval: %w", err)
	}
	if !approved {
		log.Warn().
			Str("sessionId", session.ID).
			Str("conversationId", session.ConversationID).
			Msg("auto-send blocked without approval")
		return nil, apperrors.ApprovalRequired()
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = model.ContentText
	}
	result, err := s.ingest.Send(ctx, SendParams{
		ConversationID: session.ConversationID,
		SenderType:     model.SenderBot,
		ContentType:    contentType,
		Content:        params.Content,
		AiGenerated:    true,
		AiSessionID:    &session.ID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.auditLogs.Create(ctx, model.RecordAuditParams{
		SessionID:     session.ID,
		MessageID:     &result.Message.ID,
		ActionType:    model.AuditActionAutoSend,
		FinalResponse: &params.Content,
	}); err != nil {
		return nil, fmt.Errorf("record auto-send: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("messageId", result.Message.ID).
		Msg("ai reply auto-sent")

	return result.Message, nil
}

// notActiveError distinguishes a missing session from one that has already
// left the active state.
func (s *AiSessionService) notActiveError(ctx context.Context, id string) error {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("AI session")
	}
	return apperrors.New(apperrors.ErrCodeInvalidTransition,
		fmt.Sprintf("Session is %s and can no longer be mutated", session.Status))
}

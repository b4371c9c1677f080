package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
)

// legalStatusChanges is the explicit (API-driven) transition table.
// Reopening a resolved or pending thread happens only through the ingest
// path when a new inbound message arrives; spam is left only by the
// explicit un-mark back to open.
var legalStatusChanges = map[model.ConversationStatus][]model.ConversationStatus{
	model.ConversationStatusOpen:     {model.ConversationStatusPending, model.ConversationStatusResolved, model.ConversationStatusSpam},
	model.ConversationStatusPending:  {model.ConversationStatusOpen, model.ConversationStatusResolved, model.ConversationStatusSpam},
	model.ConversationStatusResolved: {model.ConversationStatusSpam},
	model.ConversationStatusSpam:     {model.ConversationStatusOpen},
}

type ConversationService struct {
	repo repository.ConversationRepository
}

func NewConversationService(repo repository.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

func (s *ConversationService) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	return conv, nil
}

// FindOrCreate returns the single conversation for a (channel, participant)
// pair, creating it on first contact. Concurrent first-contact events for
// the same participant resolve to one row through the unique constraint.
func (s *ConversationService) FindOrCreate(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error) {
	conv, err := s.repo.Upsert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: %w", err)
	}
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, filter repository.ConversationFilter) ([]model.Conversation, int, error) {
	convs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}
	return convs, total, nil
}

// MarkAsRead resets the unread counter; status is untouched.
func (s *ConversationService) MarkAsRead(ctx context.Context, id string) error {
	conv, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if conv.UnreadCount == 0 {
		return nil
	}
	if err := s.repo.MarkAsRead(ctx, id); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return nil
}

// ChangeStatus applies an explicit status change requested by a human or AI
// caller. Requesting the current status is absorbed; illegal transitions
// surface as an orchestration error rather than being silently applied.
func (s *ConversationService) ChangeStatus(ctx context.Context, id string, to model.ConversationStatus) (*model.Conversation, error) {
	conv, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if conv.Status == to {
		return conv, nil
	}

	if !statusChangeAllowed(conv.Status, to) {
		return nil, apperrors.InvalidTransition(string(conv.Status), string(to))
	}

	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	log.Info().
		Str("conversationId", id).
		Str("from", string(conv.Status)).
		Str("to", string(to)).
		Msg("conversation status changed")

	conv.Status = to
	return conv, nil
}

func statusChangeAllowed(from, to model.ConversationStatus) bool {
	for _, allowed := range legalStatusChanges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *ConversationService) UpdateTags(ctx context.Context, id string, tags []string) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.UpdateTags(ctx, id, tags); err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	return nil
}

func (s *ConversationService) LinkCandidate(ctx context.Context, id, candidateID string) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.LinkCandidate(ctx, id, candidateID); err != nil {
		return fmt.Errorf("link candidate: %w", err)
	}
	return nil
}

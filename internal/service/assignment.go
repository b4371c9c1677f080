package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/sla"
)

// AssignmentService manages agent ownership and first-response deadlines.
// Assignment clears the deadline; dropping back to the unassigned pool while
// open re-arms it from the current priority.
type AssignmentService struct {
	conversations repository.ConversationRepository
	policy        sla.Policy
}

func NewAssignmentService(conversations repository.ConversationRepository, policy sla.Policy) *AssignmentService {
	return &AssignmentService{conversations: conversations, policy: policy}
}

func (s *AssignmentService) Assign(ctx context.Context, conversationID, agentID string) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if conv.AssignedAgentID != nil && *conv.AssignedAgentID == agentID {
		return conv, nil
	}

	if err := s.conversations.Assign(ctx, conv.ID, agentID); err != nil {
		return nil, fmt.Errorf("assign conversation: %w", err)
	}
	if conv.SlaDeadlineAt != nil {
		if err := s.conversations.UpdateSlaDeadline(ctx, conv.ID, nil); err != nil {
			return nil, fmt.Errorf("clear sla deadline: %w", err)
		}
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("agentId", agentID).
		Msg("conversation assigned")

	return s.conversations.FindByID(ctx, conv.ID)
}

func (s *AssignmentService) Unassign(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if conv.AssignedAgentID == nil {
		return conv, nil
	}

	if err := s.conversations.Unassign(ctx, conv.ID); err != nil {
		return nil, fmt.Errorf("unassign conversation: %w", err)
	}
	if conv.Status == model.ConversationStatusOpen {
		deadline := s.policy.Deadline(conv.Priority, time.Now())
		if err := s.conversations.UpdateSlaDeadline(ctx, conv.ID, &deadline); err != nil {
			return nil, fmt.Errorf("rearm sla deadline: %w", err)
		}
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("previousAgentId", *conv.AssignedAgentID).
		Msg("conversation unassigned")

	return s.conversations.FindByID(ctx, conv.ID)
}

// SetPriority changes the priority and recomputes the deadline when the
// conversation is still waiting for a first response.
func (s *AssignmentService) SetPriority(ctx context.Context, conversationID string, priority model.ConversationPriority) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}
	if conv.Priority == priority {
		return conv, nil
	}

	if err := s.conversations.UpdatePriority(ctx, conv.ID, priority); err != nil {
		return nil, fmt.Errorf("update priority: %w", err)
	}
	if conv.Status == model.ConversationStatusOpen && conv.AssignedAgentID == nil {
		deadline := s.policy.Deadline(priority, time.Now())
		if err := s.conversations.UpdateSlaDeadline(ctx, conv.ID, &deadline); err != nil {
			return nil, fmt.Errorf("recompute sla deadline: %w", err)
		}
	}

	log.Info().
		Str("conversationId", conv.ID).
		Str("from", string(conv.Priority)).
		Str("to", string(priority)).
		Msg("priority changed")

	return s.conversations.FindByID(ctx, conv.ID)
}

// FindBreached returns conversations past their deadline, for the advisory
// sweep.
func (s *AssignmentService) FindBreached(ctx context.Context, now time.Time) ([]model.Conversation, error) {
	return s.conversations.FindBreached(ctx, now)
}

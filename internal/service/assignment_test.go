package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/sla"
)

func TestAssignmentService_Assign(t *testing.T) {
	t.Run("assigns agent and clears deadline", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		deadline := time.Now().Add(time.Hour)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", Status: model.ConversationStatusOpen, SlaDeadlineAt: &deadline,
		}, nil).Once()
		repo.On("Assign", ctx, "conv-1", "agent-1").Return(nil)
		repo.On("UpdateSlaDeadline", ctx, "conv-1", (*time.Time)(nil)).Return(nil)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", AssignedAgentID: strPtr("agent-1"),
		}, nil)

		conv, err := svc.Assign(ctx, "conv-1", "agent-1")

		assert.NoError(t, err)
		assert.Equal(t, "agent-1", *conv.AssignedAgentID)
		repo.AssertExpectations(t)
	})

	t.Run("absorbs reassigning the same agent", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", AssignedAgentID: strPtr("agent-1"),
		}, nil)

		conv, err := svc.Assign(ctx, "conv-1", "agent-1")

		assert.NoError(t, err)
		assert.Equal(t, "agent-1", *conv.AssignedAgentID)
		repo.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("returns not found for unknown conversation", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-x").Return(nil, nil)

		_, err := svc.Assign(ctx, "conv-x", "agent-1")

		assert.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestAssignmentService_Unassign(t *testing.T) {
	t.Run("drops to pool and rearms deadline while open", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID:              "conv-1",
			Status:          model.ConversationStatusOpen,
			Priority:        model.PriorityHigh,
			AssignedAgentID: strPtr("agent-1"),
		}, nil).Once()
		repo.On("Unassign", ctx, "conv-1").Return(nil)
		repo.On("UpdateSlaDeadline", ctx, "conv-1", mock.MatchedBy(func(d *time.Time) bool {
			return d != nil && time.Until(*d) > 55*time.Minute && time.Until(*d) <= time.Hour
		})).Return(nil)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{ID: "conv-1"}, nil)

		_, err := svc.Unassign(ctx, "conv-1")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("does not rearm deadline on resolved conversation", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID:              "conv-1",
			Status:          model.ConversationStatusResolved,
			AssignedAgentID: strPtr("agent-1"),
		}, nil).Once()
		repo.On("Unassign", ctx, "conv-1").Return(nil)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{ID: "conv-1"}, nil)

		_, err := svc.Unassign(ctx, "conv-1")

		assert.NoError(t, err)
		repo.AssertNotCalled(t, "UpdateSlaDeadline", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("absorbs unassigning an unassigned conversation", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{ID: "conv-1"}, nil)

		conv, err := svc.Unassign(ctx, "conv-1")

		assert.NoError(t, err)
		assert.Nil(t, conv.AssignedAgentID)
		repo.AssertNotCalled(t, "Unassign", mock.Anything, mock.Anything)
	})
}

func TestAssignmentService_SetPriority(t *testing.T) {
	t.Run("recomputes deadline while awaiting first response", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID:       "conv-1",
			Status:   model.ConversationStatusOpen,
			Priority: model.PriorityNormal,
		}, nil).Once()
		repo.On("UpdatePriority", ctx, "conv-1", model.PriorityUrgent).Return(nil)
		repo.On("UpdateSlaDeadline", ctx, "conv-1", mock.MatchedBy(func(d *time.Time) bool {
			return d != nil && time.Until(*d) <= 15*time.Minute
		})).Return(nil)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", Priority: model.PriorityUrgent,
		}, nil)

		conv, err := svc.SetPriority(ctx, "conv-1", model.PriorityUrgent)

		assert.NoError(t, err)
		assert.Equal(t, model.PriorityUrgent, conv.Priority)
		repo.AssertExpectations(t)
	})

	t.Run("leaves deadline alone when assigned", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID:              "conv-1",
			Status:          model.ConversationStatusOpen,
			Priority:        model.PriorityNormal,
			AssignedAgentID: strPtr("agent-1"),
		}, nil).Once()
		repo.On("UpdatePriority", ctx, "conv-1", model.PriorityLow).Return(nil)
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", Priority: model.PriorityLow,
		}, nil)

		_, err := svc.SetPriority(ctx, "conv-1", model.PriorityLow)

		assert.NoError(t, err)
		repo.AssertNotCalled(t, "UpdateSlaDeadline", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("absorbs setting the current priority", func(t *testing.T) {
		repo := new(mockConversationRepo)
		svc := NewAssignmentService(repo, sla.DefaultFirstResponsePolicy())

		ctx := context.Background()
		repo.On("FindByID", ctx, "conv-1").Return(&model.Conversation{
			ID: "conv-1", Priority: model.PriorityHigh,
		}, nil)

		conv, err := svc.SetPriority(ctx, "conv-1", model.PriorityHigh)

		assert.NoError(t, err)
		assert.Equal(t, model.PriorityHigh, conv.Priority)
		repo.AssertNotCalled(t, "UpdatePriority", mock.Anything, mock.Anything, mock.Anything)
	})
}

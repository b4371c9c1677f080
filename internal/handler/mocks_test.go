package handler

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/recruitflow/inbox-server-go/internal/model"
	redisclient "github.com/recruitflow/inbox-server-go/internal/redis"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/sse"
)

// newTestBroker builds a broker over a redis client that never connects.
// Publish fails with a dial error, which handlers log and ignore, so event
// fan-out stays out of the way of handler assertions.
func newTestBroker() *sse.Broker {
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: time.Millisecond,
		MaxRetries:  -1,
	})}
	return sse.NewBroker(client)
}

type mockChannelRepo struct {
	mock.Mock
}

func (m *mockChannelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Channel), args.Error(1)
}

func (m *mockChannelRepo) FindByExternalID(ctx context.Context, platformAccountID, externalChannelID string) (*model.Channel, error) {
	args := m.Called(ctx, platformAccountID, externalChannelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Channel), args.Error(1)
}

func (m *mockChannelRepo) FindActive(ctx context.Context) ([]model.Channel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Channel), args.Error(1)
}

func (m *mockChannelRepo) Upsert(ctx context.Context, params model.ResolveChannelParams) (*model.Channel, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Channel), args.Error(1)
}

func (m *mockChannelRepo) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindByParticipant(ctx context.Context, channelID, participantID string) (*model.Conversation, error) {
	args := m.Called(ctx, channelID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) List(ctx context.Context, filter repository.ConversationFilter) ([]model.Conversation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Count(ctx context.Context, filter repository.ConversationFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockConversationRepo) Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) TouchLastMessage(ctx context.Context, id, preview string, ts time.Time, inbound bool) (*model.Conversation, error) {
	args := m.Called(ctx, id, preview, ts, inbound)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) MarkAsRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockConversationRepo) Assign(ctx context.Context, id, agentID string) error {
	args := m.Called(ctx, id, agentID)
	return args.Error(0)
}

func (m *mockConversationRepo) Unassign(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockConversationRepo) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockConversationRepo) UpdatePriority(ctx context.Context, id string, priority model.ConversationPriority) error {
	args := m.Called(ctx, id, priority)
	return args.Error(0)
}

func (m *mockConversationRepo) UpdateTags(ctx context.Context, id string, tags []string) error {
	args := m.Called(ctx, id, tags)
	return args.Error(0)
}

func (m *mockConversationRepo) UpdateSlaDeadline(ctx context.Context, id string, deadline *time.Time) error {
	args := m.Called(ctx, id, deadline)
	return args.Error(0)
}

func (m *mockConversationRepo) LinkCandidate(ctx context.Context, id, candidateID string) error {
	args := m.Called(ctx, id, candidateID)
	return args.Error(0)
}

func (m *mockConversationRepo) FindBreached(ctx context.Context, now time.Time) ([]model.Conversation, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Message, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) FindRecentByConversationID(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Message), args.Bool(1), args.Error(2)
}

func (m *mockMessageRepo) UpdateDeliveryStatus(ctx context.Context, id string, status model.DeliveryStatus, errorMsg *string) error {
	args := m.Called(ctx, id, status, errorMsg)
	return args.Error(0)
}

func (m *mockMessageRepo) ExpirePending(ctx context.Context, olderThan time.Time, errorMsg string) (int64, error) {
	args := m.Called(ctx, olderThan, errorMsg)
	return args.Get(0).(int64), args.Error(1)
}

type mockAiSessionRepo struct {
	mock.Mock
}

func (m *mockAiSessionRepo) FindByID(ctx context.Context, id string) (*model.AiSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiSession), args.Error(1)
}

func (m *mockAiSessionRepo) FindActiveByConversationID(ctx context.Context, conversationID string) (*model.AiSession, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiSession), args.Error(1)
}

func (m *mockAiSessionRepo) FindByConversationID(ctx context.Context, conversationID string) ([]model.AiSession, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AiSession), args.Error(1)
}

func (m *mockAiSessionRepo) Create(ctx context.Context, params model.StartAiSessionParams) (*model.AiSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiSession), args.Error(1)
}

func (m *mockAiSessionRepo) MergeContext(ctx context.Context, id string, partial model.JSONMap) (*model.AiSession, error) {
	args := m.Called(ctx, id, partial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiSession), args.Error(1)
}

func (m *mockAiSessionRepo) UpdateStep(ctx context.Context, id string, step string) error {
	args := m.Called(ctx, id, step)
	return args.Error(0)
}

func (m *mockAiSessionRepo) Transition(ctx context.Context, id string, to model.AiSessionStatus) (bool, error) {
	args := m.Called(ctx, id, to)
	return args.Bool(0), args.Error(1)
}

type mockAiAuditLogRepo struct {
	mock.Mock
}

func (m *mockAiAuditLogRepo) FindByID(ctx context.Context, id string) (*model.AiAuditLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiAuditLog), args.Error(1)
}

func (m *mockAiAuditLogRepo) FindBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]model.AiAuditLog, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AiAuditLog), args.Error(1)
}

func (m *mockAiAuditLogRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockAiAuditLogRepo) Create(ctx context.Context, params model.RecordAuditParams) (*model.AiAuditLog, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AiAuditLog), args.Error(1)
}

func (m *mockAiAuditLogRepo) HasApprovalSinceLastGeneration(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

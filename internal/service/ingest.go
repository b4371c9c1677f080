package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/sla"
)

const previewMaxRunes = 120

type IngestParams struct {
	Channel           *model.Channel
	ParticipantID     string
	ParticipantName   string
	ParticipantAvatar *string
	ParticipantMeta   json.RawMessage
	ExternalThreadID  *string
	ExternalMessageID *string
	SenderID          *string
	SenderName        *string
	ContentType       model.ContentType
	Content           string
	Attachments       json.RawMessage
	Metadata          json.RawMessage
	IdempotencyKey    *string
	PlatformTimestamp time.Time
}

type SendParams struct {
	ConversationID string
	SenderType     model.SenderType
	SenderID       *string
	SenderName     *string
	ContentType    model.ContentType
	Content        string
	Attachments    json.RawMessage
	Metadata       json.RawMessage
	AiGenerated    bool
	AiSessionID    *string
	IdempotencyKey *string
}

type IngestResult struct {
	Message      *model.Message
	Conversation *model.Conversation
	Duplicate    bool
}

// IngestService owns message ingestion for both directions. Inbound events
// are deduplicated on the idempotency key so upstream webhook retries are
// safe to replay; outbound sends enter as pending and move to sent/failed
// through delivery callbacks.
type IngestService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	channels      repository.ChannelRepository
	policy        sla.Policy
}

func NewIngestService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	channels repository.ChannelRepository,
	policy sla.Policy,
) *IngestService {
	return &IngestService{
		messages:      messages,
		conversations: conversations,
		channels:      channels,
		policy:        policy,
	}
}

// Ingest stores one inbound message. The idempotency-key short-circuit makes
// the whole operation safe to retry: a replayed delivery returns the stored
// message without touching the conversation again.
func (s *IngestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if params.IdempotencyKey != nil {
		existing, err := s.messages.FindByIdempotencyKey(ctx, *params.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}
		if existing != nil {
			log.Debug().
				Str("idempotencyKey", *params.IdempotencyKey).
				Str("messageId", existing.ID).
				Msg("duplicate delivery absorbed")
			return s.duplicateResult(ctx, existing)
		}
	}

	conv, err := s.conversations.Upsert(ctx, model.UpsertConversationParams{
		ChannelID:         params.Channel.ID,
		ParticipantID:     params.ParticipantID,
		ParticipantName:   params.ParticipantName,
		ParticipantAvatar: params.ParticipantAvatar,
		ParticipantMeta:   params.ParticipantMeta,
		ExternalThreadID:  params.ExternalThreadID,
	})
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: %w", err)
	}
	statusBefore := conv.Status

	msg, created, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationID:    conv.ID,
		ExternalMessageID: params.ExternalMessageID,
		Direction:         model.DirectionInbound,
		SenderType:        model.SenderCustomer,
		SenderID:          params.SenderID,
		SenderName:        params.SenderName,
		ContentType:       params.ContentType,
		Content:           params.Content,
		Attachments:       params.Attachments,
		Metadata:          params.Metadata,
		Status:            model.DeliveryDelivered,
		IdempotencyKey:    params.IdempotencyKey,
		PlatformTimestamp: params.PlatformTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if !created {
		// Lost the insert race against a concurrent retry of the same key.
		return s.duplicateResult(ctx, msg)
	}

	conv, err = s.conversations.TouchLastMessage(ctx, conv.ID, preview(params.Content), params.PlatformTimestamp, true)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := s.refreshSlaDeadline(ctx, conv, statusBefore); err != nil {
		log.Warn().Err(err).Str("conversationId", conv.ID).Msg("failed to refresh sla deadline")
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("conversationId", conv.ID).
		Str("channelId", params.Channel.ID).
		Msg("inbound message ingested")

	return &IngestResult{Message: msg, Conversation: conv}, nil
}

// Send records an outbound message as pending; the platform collaborator
// reports the delivery outcome asynchronously. A generated idempotency key
// protects against double submission when the caller supplies none.
func (s *IngestService) Send(ctx context.Context, params SendParams) (*IngestResult, error) {
	conv, err := s.conversations.FindByID(ctx, params.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, apperrors.NotFound("Conversation")
	}

	ch, err := s.channels.FindByID(ctx, conv.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("find channel: %w", err)
	}
	if ch == nil || !ch.Active {
		return nil, apperrors.ChannelInactive()
	}

	key := params.IdempotencyKey
	if key == nil {
		generated := "out-" + uuid.NewString()
		key = &generated
	} else {
		existing, err := s.messages.FindByIdempotencyKey(ctx, *key)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup: %w", err)
		}
		if existing != nil {
			return &IngestResult{Message: existing, Conversation: conv, Duplicate: true}, nil
		}
	}

	senderType := params.SenderType
	if senderType == "" {
		senderType = model.SenderAgent
		if params.AiGenerated {
			senderType = model.SenderBot
		}
	}

	now := time.Now()
	msg, created, err := s.messages.Create(ctx, model.CreateMessageParams{
		ConversationID:    conv.ID,
		Direction:         model.DirectionOutbound,
		SenderType:        senderType,
		SenderID:          params.SenderID,
		SenderName:        params.SenderName,
		ContentType:       params.ContentType,
		Content:           params.Content,
		Attachments:       params.Attachments,
		Metadata:          params.Metadata,
		Status:            model.DeliveryPending,
		AiGenerated:       params.AiGenerated,
		AiSessionID:       params.AiSessionID,
		IdempotencyKey:    key,
		PlatformTimestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if !created {
		return &IngestResult{Message: msg, Conversation: conv, Duplicate: true}, nil
	}

	conv, err = s.conversations.TouchLastMessage(ctx, conv.ID, preview(params.Content), now, false)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("conversationId", conv.ID).
		Bool("aiGenerated", params.AiGenerated).
		Msg("outbound message created")

	return &IngestResult{Message: msg, Conversation: conv}, nil
}

// deliveryRank orders the forward delivery lifecycle.
var deliveryRank = map[model.DeliveryStatus]int{
	model.DeliveryPending:   0,
	model.DeliverySent:      1,
	model.DeliveryDelivered: 2,
	model.DeliveryRead:      3,
}

// ApplyDeliveryStatus applies an asynchronous delivery outcome reported by
// the platform. Regressions and repeats are absorbed; a failure is recorded
// on the message as data, never surfaced as an error to the reporter.
func (s *IngestService) ApplyDeliveryStatus(ctx context.Context, messageID string, status model.DeliveryStatus, errorMsg *string) (*model.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	if msg == nil {
		return nil, apperrors.NotFound("Message")
	}
	if msg.Direction != model.DirectionOutbound {
		return nil, apperrors.InvalidInput("messageId", "delivery status applies to outbound messages")
	}

	if msg.Status == status {
		return msg, nil
	}

	if status == model.DeliveryFailed {
		if msg.Status != model.DeliveryPending && msg.Status != model.DeliverySent {
			return msg, nil
		}
	} else {
		if msg.Status == model.DeliveryFailed || deliveryRank[status] <= deliveryRank[msg.Status] {
			return msg, nil
		}
		errorMsg = nil
	}

	if err := s.messages.UpdateDeliveryStatus(ctx, msg.ID, status, errorMsg); err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}

	event := log.Info()
	if status == model.DeliveryFailed {
		event = log.Warn()
	}
	event.
		Str("messageId", msg.ID).
		Str("from", string(msg.Status)).
		Str("to", string(status)).
		Msg("delivery status updated")

	msg.Status = status
	msg.ErrorMessage = errorMsg
	return msg, nil
}

func (s *IngestService) FindMessageByIdempotencyKey(ctx context.Context, key string) (*model.Message, error) {
	return s.messages.FindByIdempotencyKey(ctx, key)
}

func (s *IngestService) History(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, int, error) {
	msgs, err := s.messages.FindByConversationID(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("find messages: %w", err)
	}
	total, err := s.messages.CountByConversationID(ctx, conversationID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return msgs, total, nil
}

// RecentHistory serves the AI prompt-building read path.
func (s *IngestService) RecentHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return s.messages.FindRecentByConversationID(ctx, conversationID, limit)
}

func (s *IngestService) duplicateResult(ctx context.Context, msg *model.Message) (*IngestResult, error) {
	conv, err := s.conversations.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &IngestResult{Message: msg, Conversation: conv, Duplicate: true}, nil
}

// refreshSlaDeadline sets the first-response deadline when a conversation
// enters open without an assignee.
func (s *IngestService) refreshSlaDeadline(ctx context.Context, conv *model.Conversation, statusBefore model.ConversationStatus) error {
	if conv.Status != model.ConversationStatusOpen || conv.AssignedAgentID != nil {
		return nil
	}
	if statusBefore == model.ConversationStatusOpen && conv.SlaDeadlineAt != nil {
		return nil
	}
	deadline := s.policy.Deadline(conv.Priority, time.Now())
	conv.SlaDeadlineAt = &deadline
	return s.conversations.UpdateSlaDeadline(ctx, conv.ID, &deadline)
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewMaxRunes {
		return content
	}
	return string(runes[:previewMaxRunes])
}

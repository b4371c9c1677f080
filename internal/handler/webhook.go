package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/service"
	"github.com/recruitflow/inbox-server-go/internal/sse"
	"github.com/recruitflow/inbox-server-go/internal/util"
)

// WebhookHandler receives normalized events from the platform gateway:
// inbound messages and delivery status callbacks.
type WebhookHandler struct {
	channelService *service.ChannelService
	ingestService  *service.IngestService
	broker         *sse.Broker
}

func NewWebhookHandler(
	channelService *service.ChannelService,
	ingestService *service.IngestService,
	broker *sse.Broker,
) *WebhookHandler {
	return &WebhookHandler{
		channelService: channelService,
		ingestService:  ingestService,
		broker:         broker,
	}
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/messages", h.Message)
	r.Post("/delivery-status", h.DeliveryStatus)

	return r
}

type webhookMessageRequest struct {
	PlatformAccountID string `json:"platformAccountId"`
	Channel           struct {
		ExternalChannelID string `json:"externalChannelId"`
		ChannelType       string `json:"channelType"`
		DisplayName       string `json:"displayName"`
	} `json:"channel"`
	Participant struct {
		ID     string          `json:"id"`
		Name   string          `json:"name"`
		Avatar *string         `json:"avatar"`
		Meta   json.RawMessage `json:"meta"`
	} `json:"participant"`
	ExternalThreadID *string `json:"externalThreadId"`
	Message          struct {
		ExternalMessageID *string         `json:"externalMessageId"`
		SenderID          *string         `json:"senderId"`
		SenderName        *string         `json:"senderName"`
		ContentType       string          `json:"contentType"`
		Content           string          `json:"content"`
		Attachments       json.RawMessage `json:"attachments"`
		Metadata          json.RawMessage `json:"metadata"`
		Timestamp         *time.Time      `json:"timestamp"`
	} `json:"message"`
	IdempotencyKey *string `json:"idempotencyKey"`
}

// POST /webhook/messages
// Resolves the channel, then runs the event through ingestion. Replayed
// deliveries come back 200 with duplicate=true so the gateway stops retrying.
func (h *WebhookHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req webhookMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.PlatformAccountID == "" || req.Channel.ExternalChannelID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "platformAccountId and channel.externalChannelId are required"})
		return
	}
	if req.Participant.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participant.id is required"})
		return
	}
	if !util.IsValidEnum(req.Channel.ChannelType, model.ValidChannelTypes) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid channel.channelType"})
		return
	}
	if !util.IsValidEnum(req.Message.ContentType, model.ValidContentTypes) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid message.contentType"})
		return
	}

	ctx := r.Context()

	channel, err := h.channelService.Resolve(ctx, model.ResolveChannelParams{
		PlatformAccountID: req.PlatformAccountID,
		ExternalChannelID: req.Channel.ExternalChannelID,
		ChannelType:       model.ChannelType(req.Channel.ChannelType),
		DisplayName:       req.Channel.DisplayName,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to resolve channel")
		writeError(w, err)
		return
	}

	ts := time.Now()
	if req.Message.Timestamp != nil {
		ts = *req.Message.Timestamp
	}

	result, err := h.ingestService.Ingest(ctx, service.IngestParams{
		Channel:           channel,
		ParticipantID:     req.Participant.ID,
		ParticipantName:   req.Participant.Name,
		ParticipantAvatar: req.Participant.Avatar,
		ParticipantMeta:   req.Participant.Meta,
		ExternalThreadID:  req.ExternalThreadID,
		ExternalMessageID: req.Message.ExternalMessageID,
		SenderID:          req.Message.SenderID,
		SenderName:        req.Message.SenderName,
		ContentType:       model.ContentType(req.Message.ContentType),
		Content:           req.Message.Content,
		Attachments:       req.Message.Attachments,
		Metadata:          req.Message.Metadata,
		IdempotencyKey:    req.IdempotencyKey,
		PlatformTimestamp: ts,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to ingest message")
		writeError(w, err)
		return
	}

	if !result.Duplicate {
		h.publishMessageEvents(ctx, channel.ID, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messageId":      result.Message.ID,
		"conversationId": result.Message.ConversationID,
		"duplicate":      result.Duplicate,
	})
}

type deliveryStatusRequest struct {
	MessageID      string  `json:"messageId"`
	IdempotencyKey string  `json:"idempotencyKey"`
	Status         string  `json:"status"`
	ErrorMessage   *string `json:"errorMessage"`
}

// POST /webhook/delivery-status
// The platform may reference the message either by our id or by the
// idempotency key it was submitted under.
func (h *WebhookHandler) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req deliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.MessageID == "" && req.IdempotencyKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messageId or idempotencyKey is required"})
		return
	}
	if !util.IsValidEnum(req.Status, model.ValidDeliveryStatuses) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		return
	}

	messageID := req.MessageID
	if messageID == "" {
		found, err := h.ingestService.FindMessageByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err != nil {
			writeError(w, err)
			return
		}
		if found == nil {
			writeError(w, apperrors.NotFound("Message"))
			return
		}
		messageID = found.ID
	}

	msg, err := h.ingestService.ApplyDeliveryStatus(r.Context(), messageID, model.DeliveryStatus(req.Status), req.ErrorMessage)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messageId": msg.ID,
		"status":    msg.Status,
	})
}

func (h *WebhookHandler) publishMessageEvents(ctx context.Context, channelID string, result *service.IngestResult) {
	if err := h.broker.Publish(ctx, channelID, sse.Event{
		Type: sse.EventMessageCreated,
		Data: result.Message.ToEventData(),
	}); err != nil {
		log.Error().Err(err).Str("messageId", result.Message.ID).Msg("failed to publish message event")
	}

	convData, err := json.Marshal(viewConversation(result.Conversation))
	if err != nil {
		return
	}
	if err := h.broker.Publish(ctx, channelID, sse.Event{
		Type: sse.EventConversationUpdated,
		Data: convData,
	}); err != nil {
		log.Error().Err(err).Str("conversationId", result.Conversation.ID).Msg("failed to publish conversation event")
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/recruitflow/inbox-server-go/internal/audit"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/repository"
	"github.com/recruitflow/inbox-server-go/internal/service"
	"github.com/recruitflow/inbox-server-go/internal/sse"
	"github.com/recruitflow/inbox-server-go/internal/util"
)

// ConversationsHandler is the agent-facing inbox API.
type ConversationsHandler struct {
	convService       *service.ConversationService
	assignmentService *service.AssignmentService
	ingestService     *service.IngestService
	channelService    *service.ChannelService
	broker            *sse.Broker
}

func NewConversationsHandler(
	convService *service.ConversationService,
	assignmentService *service.AssignmentService,
	ingestService *service.IngestService,
	channelService *service.ChannelService,
	broker *sse.Broker,
) *ConversationsHandler {
	return &ConversationsHandler{
		convService:       convService,
		assignmentService: assignmentService,
		ingestService:     ingestService,
		channelService:    channelService,
		broker:            broker,
	}
}

func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/conversations", h.List)
	r.Get("/conversations/{id}", h.Get)
	r.Get("/conversations/{id}/messages", h.Messages)
	r.Post("/conversations/{id}/messages", h.Send)
	r.Post("/conversations/{id}/assign", h.Assign)
	r.Post("/conversations/{id}/unassign", h.Unassign)
	r.Post("/conversations/{id}/read", h.MarkRead)
	r.Patch("/conversations/{id}/status", h.ChangeStatus)
	r.Patch("/conversations/{id}/priority", h.SetPriority)
	r.Put("/conversations/{id}/tags", h.UpdateTags)
	r.Post("/conversations/{id}/candidate", h.LinkCandidate)

	r.Get("/channels", h.ListChannels)
	r.Post("/channels/{id}/deactivate", h.DeactivateChannel)

	return r
}

// GET /v1/conversations
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if status := q.Get("status"); status != "" && !util.IsValidEnum(status, model.ValidConversationStatuses) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		return
	}
	if priority := q.Get("priority"); priority != "" && !util.IsValidEnum(priority, model.ValidPriorities) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid priority"})
		return
	}

	page := ParsePagination(r)
	filter := repository.ConversationFilter{
		ChannelID:       q.Get("channelId"),
		Status:          model.ConversationStatus(q.Get("status")),
		AssignedAgentID: q.Get("assignedAgentId"),
		Unassigned:      q.Get("unassigned") == "true",
		Priority:        model.ConversationPriority(q.Get("priority")),
		Limit:           page.Limit,
		Offset:          page.Offset,
	}

	convs, total, err := h.convService.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": viewConversations(convs),
		"total":         total,
		"limit":         page.Limit,
		"offset":        page.Offset,
	})
}

// GET /v1/conversations/{id}
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.convService.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewConversation(conv))
}

// GET /v1/conversations/{id}/messages
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.convService.FindByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	page := ParsePagination(r)
	msgs, total, err := h.ingestService.History(r.Context(), id, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

type sendMessageRequest struct {
	SenderID       *string         `json:"senderId"`
	SenderName     *string         `json:"senderName"`
	ContentType    string          `json:"contentType"`
	Content        string          `json:"content"`
	Attachments    json.RawMessage `json:"attachments"`
	Metadata       json.RawMessage `json:"metadata"`
	IdempotencyKey *string         `json:"idempotencyKey"`
}

// POST /v1/conversations/{id}/messages
func (h *ConversationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.ContentType == "" {
		req.ContentType = string(model.ContentText)
	}
	if !util.IsValidEnum(req.ContentType, model.ValidContentTypes) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid contentType"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	result, err := h.ingestService.Send(r.Context(), service.SendParams{
		ConversationID: chi.URLParam(r, "id"),
		SenderType:     model.SenderAgent,
		SenderID:       req.SenderID,
		SenderName:     req.SenderName,
		ContentType:    model.ContentType(req.ContentType),
		Content:        req.Content,
		Attachments:    req.Attachments,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if !result.Duplicate {
		h.publishMessage(r.Context(), result)
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Message)
}

type assignRequest struct {
	AgentID string `json:"agentId"`
}

// POST /v1/conversations/{id}/assign
func (h *ConversationsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agentId is required"})
		return
	}

	conv, err := h.assignmentService.Assign(r.Context(), chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishConversation(r.Context(), conv)
	writeJSON(w, http.StatusOK, viewConversation(conv))
}

// POST /v1/conversations/{id}/unassign
func (h *ConversationsHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	conv, err := h.assignmentService.Unassign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishConversation(r.Context(), conv)
	writeJSON(w, http.StatusOK, viewConversation(conv))
}

// POST /v1/conversations/{id}/read
func (h *ConversationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.convService.MarkAsRead(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

// PATCH /v1/conversations/{id}/status
func (h *ConversationsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if !util.IsValidEnum(req.Status, model.ValidConversationStatuses) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status"})
		return
	}

	conv, err := h.convService.ChangeStatus(r.Context(), chi.URLParam(r, "id"), model.ConversationStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishConversation(r.Context(), conv)
	writeJSON(w, http.StatusOK, viewConversation(conv))
}

type setPriorityRequest struct {
	Priority string `json:"priority"`
}

// PATCH /v1/conversations/{id}/priority
func (h *ConversationsHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var req setPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if !util.IsValidEnum(req.Priority, model.ValidPriorities) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid priority"})
		return
	}

	conv, err := h.assignmentService.SetPriority(r.Context(), chi.URLParam(r, "id"), model.ConversationPriority(req.Priority))
	if err != nil {
		writeError(w, err)
		return
	}

	h.publishConversation(r.Context(), conv)
	writeJSON(w, http.StatusOK, viewConversation(conv))
}

type updateTagsRequest struct {
	Tags []string `json:"tags"`
}

// PUT /v1/conversations/{id}/tags
func (h *ConversationsHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	var req updateTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}

	id := chi.URLParam(r, "id")
	if err := h.convService.UpdateTags(r.Context(), id, req.Tags); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type linkCandidateRequest struct {
	CandidateID string `json:"candidateId"`
}

// POST /v1/conversations/{id}/candidate
func (h *ConversationsHandler) LinkCandidate(w http.ResponseWriter, r *http.Request) {
	var req linkCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CandidateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidateId is required"})
		return
	}

	if err := h.convService.LinkCandidate(r.Context(), chi.URLParam(r, "id"), req.CandidateID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/channels
func (h *ConversationsHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channelService.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// POST /v1/channels/{id}/deactivate
func (h *ConversationsHandler) DeactivateChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.channelService.Deactivate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventChannelDeactivate,
		ChannelID: id,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ConversationsHandler) publishMessage(ctx context.Context, result *service.IngestResult) {
	if err := h.broker.Publish(ctx, result.Conversation.ChannelID, sse.Event{
		Type: sse.EventMessageCreated,
		Data: result.Message.ToEventData(),
	}); err != nil {
		log.Error().Err(err).Str("messageId", result.Message.ID).Msg("failed to publish message event")
	}
	h.publishConversation(ctx, result.Conversation)
}

func (h *ConversationsHandler) publishConversation(ctx context.Context, conv *model.Conversation) {
	data, err := json.Marshal(viewConversation(conv))
	if err != nil {
		return
	}
	if err := h.broker.Publish(ctx, conv.ChannelID, sse.Event{
		Type: sse.EventConversationUpdated,
		Data: data,
	}); err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("failed to publish conversation event")
	}
}

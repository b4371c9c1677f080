package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/recruitflow/inbox-server-go/internal/audit"
	apperrors "github.com/recruitflow/inbox-server-go/internal/errors"
	"github.com/recruitflow/inbox-server-go/internal/model"
	"github.com/recruitflow/inbox-server-go/internal/service"
	"github.com/recruitflow/inbox-server-go/internal/sse"
	"github.com/recruitflow/inbox-server-go/internal/util"
)

// AiHandler is the API surface for the AI orchestrator. It is mounted behind
// its own auth token so the orchestrator credentials never overlap with
// agent credentials.
type AiHandler struct {
	sessionService *service.AiSessionService
	auditService   *service.AiAuditService
	convService    *service.ConversationService
	ingestService  *service.IngestService
	broker         *sse.Broker
}

func NewAiHandler(
	sessionService *service.AiSessionService,
	auditService *service.AiAuditService,
	convService *service.ConversationService,
	ingestService *service.IngestService,
	broker *sse.Broker,
) *AiHandler {
	return &AiHandler{
		sessionService: sessionService,
		auditService:   auditService,
		convService:    convService,
		ingestService:  ingestService,
		broker:         broker,
	}
}

func (h *AiHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", h.StartSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Patch("/sessions/{id}/context", h.MergeContext)
	r.Post("/sessions/{id}/step", h.AdvanceStep)
	r.Post("/sessions/{id}/pause", h.PauseSession)
	r.Post("/sessions/{id}/complete", h.CompleteSession)
	r.Post("/sessions/{id}/auto-send", h.AutoSend)
	r.Post("/sessions/{id}/audit", h.RecordAudit)
	r.Get("/sessions/{id}/audit", h.ListAudit)

	r.Get("/conversations/{id}/sessions", h.ListSessions)
	r.Get("/conversations/{id}/sessions/active", h.ActiveSession)
	r.Get("/conversations/{id}/history", h.History)

	return r
}

type startSessionRequest struct {
	ConversationID string  `json:"conversationId"`
	JobID          *string `json:"jobId"`
	Mode           string  `json:"mode"`
}

// POST /ai/v1/sessions
func (h *AiHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversationId is required"})
		return
	}
	if !util.IsValidEnum(req.Mode, model.ValidAiModes) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid mode"})
		return
	}

	session, err := h.sessionService.Start(r.Context(), model.StartAiSessionParams{
		ConversationID: req.ConversationID,
		JobID:          req.JobID,
		Mode:           model.AiSessionMode(req.Mode),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:           audit.EventAiSessionStart,
		ConversationID: req.ConversationID,
		Details:        map[string]interface{}{"sessionId": session.ID, "mode": req.Mode},
	})
	writeJSON(w, http.StatusCreated, session)
}

// GET /ai/v1/sessions/{id}
func (h *AiHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PATCH /ai/v1/sessions/{id}/context
func (h *AiHandler) MergeContext(w http.ResponseWriter, r *http.Request) {
	var partial model.JSONMap
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	session, err := h.sessionService.MergeContext(r.Context(), chi.URLParam(r, "id"), partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type advanceStepRequest struct {
	Step string `json:"step"`
}

// POST /ai/v1/sessions/{id}/step
func (h *AiHandler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	var req advanceStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Step == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "step is required"})
		return
	}

	session, err := h.sessionService.AdvanceStep(r.Context(), chi.URLParam(r, "id"), req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /ai/v1/sessions/{id}/pause
func (h *AiHandler) PauseSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// POST /ai/v1/sessions/{id}/complete
func (h *AiHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type autoSendRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// POST /ai/v1/sessions/{id}/auto-send
func (h *AiHandler) AutoSend(w http.ResponseWriter, r *http.Request) {
	var req autoSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = string(model.ContentText)
	}
	if !util.IsValidEnum(req.ContentType, model.ValidContentTypes) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid contentType"})
		return
	}

	sessionID := chi.URLParam(r, "id")
	msg, err := h.sessionService.AutoSend(r.Context(), service.AutoSendParams{
		SessionID:   sessionID,
		Content:     req.Content,
		ContentType: model.ContentType(req.ContentType),
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeApprovalRequired {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAiAutoSendBlocked,
				Details: map[string]interface{}{"sessionId": sessionID},
			})
		}
		writeError(w, err)
		return
	}

	h.publishAutoSend(r, msg)
	writeJSON(w, http.StatusCreated, msg)
}

func (h *AiHandler) publishAutoSend(r *http.Request, msg *model.Message) {
	conv, err := h.convService.FindByID(r.Context(), msg.ConversationID)
	if err != nil {
		log.Error().Err(err).Str("conversationId", msg.ConversationID).Msg("failed to load conversation for event")
		return
	}

	if err := h.broker.Publish(r.Context(), conv.ChannelID, sse.Event{
		Type: sse.EventMessageCreated,
		Data: msg.ToEventData(),
	}); err != nil {
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to publish message event")
	}

	data, err := json.Marshal(viewConversation(conv))
	if err != nil {
		return
	}
	if err := h.broker.Publish(r.Context(), conv.ChannelID, sse.Event{
		Type: sse.EventConversationUpdated,
		Data: data,
	}); err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("failed to publish conversation event")
	}
}

type recordAuditRequest struct {
	MessageID         *string         `json:"messageId"`
	ActionType        string          `json:"actionType"`
	InputPrompt       *string         `json:"inputPrompt"`
	ToolName          *string         `json:"toolName"`
	ToolInput         json.RawMessage `json:"toolInput"`
	ToolOutput        json.RawMessage `json:"toolOutput"`
	GeneratedResponse *string         `json:"generatedResponse"`
	FinalResponse     *string         `json:"finalResponse"`
	ConfidenceScore   *float64        `json:"confidenceScore"`
	ApprovedBy        *string         `json:"approvedBy"`
	ProcessingTimeMs  *int            `json:"processingTimeMs"`
	TokenUsage        *int            `json:"tokenUsage"`
}

// POST /ai/v1/sessions/{id}/audit
func (h *AiHandler) RecordAudit(w http.ResponseWriter, r *http.Request) {
	var req recordAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if !util.IsValidEnum(req.ActionType, model.ValidAuditActions) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid actionType"})
		return
	}

	entry, err := h.auditService.Record(r.Context(), model.RecordAuditParams{
		SessionID:         chi.URLParam(r, "id"),
		MessageID:         req.MessageID,
		ActionType:        model.AuditActionType(req.ActionType),
		InputPrompt:       req.InputPrompt,
		ToolName:          req.ToolName,
		ToolInput:         req.ToolInput,
		ToolOutput:        req.ToolOutput,
		GeneratedResponse: req.GeneratedResponse,
		FinalResponse:     req.FinalResponse,
		ConfidenceScore:   req.ConfidenceScore,
		ApprovedBy:        req.ApprovedBy,
		ProcessingTimeMs:  req.ProcessingTimeMs,
		TokenUsage:        req.TokenUsage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// GET /ai/v1/sessions/{id}/audit
func (h *AiHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)
	entries, total, err := h.auditService.ListBySession(r.Context(), chi.URLParam(r, "id"), page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// GET /ai/v1/conversations/{id}/sessions
func (h *AiHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionService.ListByConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /ai/v1/conversations/{id}/sessions/active
func (h *AiHandler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No active session"})
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /ai/v1/conversations/{id}/history
func (h *AiHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.convService.FindByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	page := ParsePagination(r)
	msgs, err := h.ingestService.RecentHistory(r.Context(), id, page.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

// AiAuditLogRepository is insert-and-read only. There is deliberately no
// update or delete: the trail is append-only.
type AiAuditLogRepository interface {
	FindByID(ctx context.Context, id string) (*model.AiAuditLog, error)
	FindBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]model.AiAuditLog, error)
	CountBySessionID(ctx context.Context, sessionID string) (int, error)
	Create(ctx context.Context, params model.RecordAuditParams) (*model.AiAuditLog, error)
	HasApprovalSinceLastGeneration(ctx context.Context, sessionID string) (bool, error)
}

type aiAuditLogRepo struct {
	db *sqlx.DB
}

func NewAiAuditLogRepository(db *sqlx.DB) AiAuditLogRepository {
	return &aiAuditLogRepo{db: db}
}

func (r *aiAuditLogRepo) FindByID(ctx context.Context, id string) (*model.AiAuditLog, error) {
	var entry model.AiAuditLog
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM ai_audit_logs WHERE id = $1`, id)
	return HandleNotFound(&entry, err)
}

func (r *aiAuditLogRepo) FindBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]model.AiAuditLog, error) {
	var entries []model.AiAuditLog
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM ai_audit_logs
		WHERE session_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, sessionID, limit, offset)
	return entries, err
}

func (r *aiAuditLogRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM ai_audit_logs WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *aiAuditLogRepo) Create(ctx context.Context, params model.RecordAuditParams) (*model.AiAuditLog, error) {
	var entry model.AiAuditLog
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO ai_audit_logs
			(session_id, message_id, action_type, input_prompt, tool_name,
			 tool_input, tool_output, generated_response, final_response,
			 confidence_score, approved_by, processing_time_ms, token_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING *
	`, params.SessionID, params.MessageID, params.ActionType, params.InputPrompt,
		params.ToolName, params.ToolInput, params.ToolOutput,
		params.GeneratedResponse, params.FinalResponse, params.ConfidenceScore,
		params.ApprovedBy, params.ProcessingTimeMs, params.TokenUsage)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HasApprovalSinceLastGeneration reports whether the session's most recent
// generate/edit entry has been followed by an approve entry. This is the
// human-in-the-loop checkpoint auto_send must pass.
func (r *aiAuditLogRepo) HasApprovalSinceLastGeneration(ctx context.Context, sessionID string) (bool, error) {
	var approved bool
	err := r.db.GetContext(ctx, &approved, `
		SELECT EXISTS (
			SELECT 1 FROM ai_audit_logs approvals
			WHERE approvals.session_id = $1
			AND approvals.action_type = 'approve'
			AND approvals.created_at >= COALESCE((
				SELECT MAX(created_at) FROM ai_audit_logs
				WHERE session_id = $1 AND action_type IN ('generate', 'edit')
			), '-infinity'::timestamptz)
		)
	`, sessionID)
	return approved, err
}

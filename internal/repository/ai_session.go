package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

// ActiveSessionConstraint is the partial unique index enforcing at most one
// active session per conversation:
//
//	CREATE UNIQUE INDEX ux_ai_sessions_active
//	ON ai_sessions (conversation_id) WHERE status = 'active'
const ActiveSessionConstraint = "ux_ai_sessions_active"

type AiSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.AiSession, error)
	FindActiveByConversationID(ctx context.Context, conversationID string) (*model.AiSession, error)
	FindByConversationID(ctx context.Context, conversationID string) ([]model.AiSession, error)
	Create(ctx context.Context, params model.StartAiSessionParams) (*model.AiSession, error)
	MergeContext(ctx context.Context, id string, partial model.JSONMap) (*model.AiSession, error)
	UpdateStep(ctx context.Context, id string, step string) error
	Transition(ctx context.Context, id string, to model.AiSessionStatus) (bool, error)
}

type aiSessionRepo struct {
	db *sqlx.DB
}

func NewAiSessionRepository(db *sqlx.DB) AiSessionRepository {
	return &aiSessionRepo{db: db}
}

func (r *aiSessionRepo) FindByID(ctx context.Context, id string) (*model.AiSession, error) {
	var s model.AiSession
	err := r.db.GetContext(ctx, &s, `SELECT * FROM ai_sessions WHERE id = $1`, id)
	return HandleNotFound(&s, err)
}

func (r *aiSessionRepo) FindActiveByConversationID(ctx context.Context, conversationID string) (*model.AiSession, error) {
	var s model.AiSession
	err := r.db.GetContext(ctx, &s, `
		SELECT * FROM ai_sessions
		WHERE conversation_id = $1 AND status = 'active'
	`, conversationID)
	return HandleNotFound(&s, err)
}

func (r *aiSessionRepo) FindByConversationID(ctx context.Context, conversationID string) ([]model.AiSession, error) {
	var sessions []model.AiSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM ai_sessions
		WHERE conversation_id = $1
		ORDER BY created_at DESC
	`, conversationID)
	return sessions, err
}

// Create inserts an active session with empty context. The partial unique
// index makes the check-and-insert atomic: when two starts race, exactly one
// insert succeeds and the other surfaces a unique violation.
func (r *aiSessionRepo) Create(ctx context.Context, params model.StartAiSessionParams) (*model.AiSession, error) {
	var s model.AiSession
	err := r.db.GetContext(ctx, &s, `
		INSERT INTO ai_sessions (conversation_id, job_id, mode, status, context)
		VALUES ($1, $2, $3, 'active', '{}')
		RETURNING *
	`, params.ConversationID, params.JobID, params.Mode)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MergeContext shallow-merges keys into the stored context. jsonb || keeps
// untouched keys and overwrites colliding ones, so multi-step pipelines can
// accumulate state atomically. Only active sessions are mutable.
func (r *aiSessionRepo) MergeContext(ctx context.Context, id string, partial model.JSONMap) (*model.AiSession, error) {
	var s model.AiSession
	err := r.db.GetContext(ctx, &s, `
		UPDATE ai_sessions SET context = context || $2::jsonb
		WHERE id = $1 AND status = 'active'
		RETURNING *
	`, id, partial)
	return HandleNotFound(&s, err)
}

func (r *aiSessionRepo) UpdateStep(ctx context.Context, id string, step string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ai_sessions SET current_step = $2
		WHERE id = $1 AND status = 'active'
	`, id, step)
	return err
}

// Transition moves an active session to paused or completed. Returns false
// when the session was not active, which callers treat as an illegal
// transition rather than retrying.
func (r *aiSessionRepo) Transition(ctx context.Context, id string, to model.AiSessionStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE ai_sessions SET
			status = $2,
			ended_at = $3
		WHERE id = $1 AND status = 'active'
	`, id, to, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Message, error)
	FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	FindRecentByConversationID(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	CountByConversationID(ctx context.Context, conversationID string) (int, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, bool, error)
	UpdateDeliveryStatus(ctx context.Context, id string, status model.DeliveryStatus, errorMsg *string) error
	ExpirePending(ctx context.Context, olderThan time.Time, errorMsg string) (int64, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM messages WHERE idempotency_key = $1
	`, key)
	return HandleNotFound(&msg, err)
}

// FindByConversationID orders by platform timestamp, not ingestion order,
// so retried or fanned-in deliveries display in their true sequence.
func (r *messageRepo) FindByConversationID(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = $1
		ORDER BY platform_timestamp ASC, created_at ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	return msgs, err
}

// FindRecentByConversationID returns the newest messages in chronological
// order, for AI prompt building.
func (r *messageRepo) FindRecentByConversationID(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY platform_timestamp DESC, created_at DESC
			LIMIT $2
		) recent
		ORDER BY platform_timestamp ASC, created_at ASC
	`, conversationID, limit)
	return msgs, err
}

func (r *messageRepo) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = $1
	`, conversationID)
	return count, err
}

// Create inserts a message row. When an idempotency key is present and a row
// with that key already exists, the existing row is returned with created
// false. The unique index makes retried deliveries collapse to one row even
// when two inserts race.
func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, bool, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(conversation_id, external_message_id, direction, sender_type,
			 sender_id, sender_name, content_type, content, attachments,
			 metadata, status, ai_generated, ai_session_id, idempotency_key,
			 platform_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING *
	`, params.ConversationID, params.ExternalMessageID, params.Direction,
		params.SenderType, params.SenderID, params.SenderName, params.ContentType,
		params.Content, params.Attachments, params.Metadata, params.Status,
		params.AiGenerated, params.AiSessionID, params.IdempotencyKey,
		params.PlatformTimestamp)
	if err == nil {
		return &msg, true, nil
	}

	// ON CONFLICT DO NOTHING yields no row when the key already exists.
	if _, ferr := HandleNotFound(&msg, err); ferr != nil {
		return nil, false, ferr
	}

	if params.IdempotencyKey == nil {
		return nil, false, err
	}
	dup, derr := r.FindByIdempotencyKey(ctx, *params.IdempotencyKey)
	if derr != nil {
		return nil, false, derr
	}
	if dup == nil {
		return nil, false, err
	}
	return dup, false, nil
}

func (r *messageRepo) UpdateDeliveryStatus(ctx context.Context, id string, status model.DeliveryStatus, errorMsg *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			status = $2,
			error_message = $3
		WHERE id = $1
	`, id, status, errorMsg)
	return err
}

// ExpirePending fails outbound sends that never received a delivery
// acknowledgment. Run by the background sweep.
func (r *messageRepo) ExpirePending(ctx context.Context, olderThan time.Time, errorMsg string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET
			status = 'failed',
			error_message = $2
		WHERE direction = 'outbound'
		AND status = 'pending'
		AND created_at < $1
	`, olderThan, errorMsg)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

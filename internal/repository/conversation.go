package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

type ConversationFilter struct {
	ChannelID       string
	Status          model.ConversationStatus
	AssignedAgentID string
	Unassigned      bool
	Priority        model.ConversationPriority
	Limit           int
	Offset          int
}

type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByParticipant(ctx context.Context, channelID, participantID string) (*model.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error)
	Count(ctx context.Context, filter ConversationFilter) (int, error)
	Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, id, preview string, ts time.Time, inbound bool) (*model.Conversation, error)
	MarkAsRead(ctx context.Context, id string) error
	Assign(ctx context.Context, id, agentID string) error
	Unassign(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error
	UpdatePriority(ctx context.Context, id string, priority model.ConversationPriority) error
	UpdateTags(ctx context.Context, id string, tags []string) error
	UpdateSlaDeadline(ctx context.Context, id string, deadline *time.Time) error
	LinkCandidate(ctx context.Context, id, candidateID string) error
	FindBreached(ctx context.Context, now time.Time) ([]model.Conversation, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT * FROM conversations WHERE id = $1`, id)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) FindByParticipant(ctx context.Context, channelID, participantID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations
		WHERE channel_id = $1 AND participant_id = $2
	`, channelID, participantID)
	return HandleNotFound(&conv, err)
}

func (f ConversationFilter) whereClause() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.ChannelID != "" {
		add("channel_id = $%d", f.ChannelID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.AssignedAgentID != "" {
		add("assigned_agent_id = $%d", f.AssignedAgentID)
	} else if f.Unassigned {
		clauses = append(clauses, "assigned_agent_id IS NULL")
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r *conversationRepo) List(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error) {
	where, args := filter.whereClause()
	query := fmt.Sprintf(`
		SELECT * FROM conversations
		%s
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, query, args...)
	return convs, err
}

func (r *conversationRepo) Count(ctx context.Context, filter ConversationFilter) (int, error) {
	where, args := filter.whereClause()
	var count int
	err := r.db.GetContext(ctx, &count,
		fmt.Sprintf(`SELECT COUNT(*) FROM conversations %s`, where), args...)
	return count, err
}

// Upsert finds-or-creates the conversation for a (channel, participant)
// pair. The unique constraint resolves concurrent first-contact races:
// the loser's insert turns into an update of the winner's row.
func (r *conversationRepo) Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations
			(channel_id, participant_id, participant_name, participant_avatar,
			 participant_meta, external_thread_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel_id, participant_id) DO UPDATE SET
			participant_name = EXCLUDED.participant_name,
			participant_avatar = COALESCE(EXCLUDED.participant_avatar, conversations.participant_avatar),
			participant_meta = COALESCE(EXCLUDED.participant_meta, conversations.participant_meta),
			external_thread_id = COALESCE(conversations.external_thread_id, EXCLUDED.external_thread_id),
			updated_at = NOW()
		RETURNING *
	`, params.ChannelID, params.ParticipantID, params.ParticipantName,
		params.ParticipantAvatar, params.ParticipantMeta, params.ExternalThreadID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// TouchLastMessage applies the rolling-summary update for a new message.
// The fields are commutative under concurrent delivery: the latest platform
// timestamp wins, the unread counter increments atomically, and an inbound
// message on a resolved or pending thread reopens it. Spam never auto-reopens.
func (r *conversationRepo) TouchLastMessage(ctx context.Context, id, preview string, ts time.Time, inbound bool) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		UPDATE conversations SET
			last_message_preview = CASE WHEN last_message_at IS NULL OR last_message_at <= $3
				THEN $2 ELSE last_message_preview END,
			last_message_at = GREATEST(COALESCE(last_message_at, $3), $3),
			unread_count = unread_count + CASE WHEN $4 THEN 1 ELSE 0 END,
			status = CASE WHEN $4 AND status IN ('resolved', 'pending')
				THEN 'open' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, preview, ts, inbound)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) MarkAsRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET unread_count = 0, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

func (r *conversationRepo) Assign(ctx context.Context, id, agentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			assigned_agent_id = $2,
			assigned_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`, id, agentID)
	return err
}

func (r *conversationRepo) Unassign(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			assigned_agent_id = NULL,
			assigned_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *conversationRepo) UpdateStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	return err
}

func (r *conversationRepo) UpdatePriority(ctx context.Context, id string, priority model.ConversationPriority) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET priority = $2, updated_at = NOW() WHERE id = $1
	`, id, priority)
	return err
}

func (r *conversationRepo) UpdateTags(ctx context.Context, id string, tags []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET tags = $2, updated_at = NOW() WHERE id = $1
	`, id, pq.StringArray(tags))
	return err
}

func (r *conversationRepo) UpdateSlaDeadline(ctx context.Context, id string, deadline *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET sla_deadline_at = $2, updated_at = NOW() WHERE id = $1
	`, id, deadline)
	return err
}

func (r *conversationRepo) LinkCandidate(ctx context.Context, id, candidateID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET candidate_id = $2, updated_at = NOW() WHERE id = $1
	`, id, candidateID)
	return err
}

// FindBreached lists conversations past their SLA deadline. Used only by the
// advisory sweep; the breach fact itself is derived at read time.
func (r *conversationRepo) FindBreached(ctx context.Context, now time.Time) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE sla_deadline_at IS NOT NULL
		AND sla_deadline_at < $1
		AND status NOT IN ('resolved', 'spam')
		ORDER BY sla_deadline_at ASC
	`, now)
	return convs, err
}

package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recruitflow/inbox-server-go/internal/database"
	"github.com/recruitflow/inbox-server-go/internal/model"
)

// Schema for repository tests. Mirrors the production relations, including
// the uniqueness rules the repositories lean on: one conversation per
// (channel, participant), one message per idempotency key, and at most one
// active AI session per conversation.
const testSchema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS channels (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	platform_account_id text NOT NULL,
	channel_type text NOT NULL,
	external_channel_id text NOT NULL,
	display_name text NOT NULL DEFAULT '',
	active boolean NOT NULL DEFAULT TRUE,
	last_synced_at timestamptz NOT NULL DEFAULT NOW(),
	created_at timestamptz NOT NULL DEFAULT NOW(),
	UNIQUE (platform_account_id, external_channel_id)
);

CREATE TABLE IF NOT EXISTS conversations (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	channel_id uuid NOT NULL REFERENCES channels(id),
	external_thread_id text,
	participant_id text NOT NULL,
	participant_name text NOT NULL DEFAULT '',
	participant_avatar text,
	participant_meta jsonb,
	status text NOT NULL DEFAULT 'open',
	assigned_agent_id text,
	assigned_at timestamptz,
	priority text NOT NULL DEFAULT 'normal',
	tags text[] NOT NULL DEFAULT '{}',
	last_message_at timestamptz,
	last_message_preview text,
	unread_count integer NOT NULL DEFAULT 0,
	sla_deadline_at timestamptz,
	candidate_id text,
	created_at timestamptz NOT NULL DEFAULT NOW(),
	updated_at timestamptz NOT NULL DEFAULT NOW(),
	UNIQUE (channel_id, participant_id)
);

CREATE TABLE IF NOT EXISTS ai_sessions (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	conversation_id uuid NOT NULL REFERENCES conversations(id),
	job_id text,
	mode text NOT NULL,
	status text NOT NULL DEFAULT 'active',
	context jsonb NOT NULL DEFAULT '{}',
	current_step text,
	created_at timestamptz NOT NULL DEFAULT NOW(),
	ended_at timestamptz
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_ai_sessions_active
	ON ai_sessions (conversation_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS messages (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	conversation_id uuid NOT NULL REFERENCES conversations(id),
	external_message_id text,
	direction text NOT NULL,
	sender_type text NOT NULL,
	sender_id text,
	sender_name text,
	content_type text NOT NULL DEFAULT 'text',
	content text NOT NULL DEFAULT '',
	attachments jsonb,
	metadata jsonb,
	status text NOT NULL DEFAULT 'pending',
	error_message text,
	ai_generated boolean NOT NULL DEFAULT FALSE,
	ai_session_id uuid,
	idempotency_key text,
	platform_timestamp timestamptz NOT NULL,
	created_at timestamptz NOT NULL DEFAULT NOW(),
	UNIQUE (idempotency_key)
);

CREATE TABLE IF NOT EXISTS ai_audit_logs (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	session_id uuid NOT NULL REFERENCES ai_sessions(id),
	message_id uuid,
	action_type text NOT NULL,
	input_prompt text,
	tool_name text,
	tool_input jsonb,
	tool_output jsonb,
	generated_response text,
	final_response text,
	confidence_score double precision,
	approved_by text,
	processing_time_ms integer,
	token_usage integer,
	created_at timestamptz NOT NULL DEFAULT NOW()
);
`

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(dsn)
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	_, err = db.Exec(`TRUNCATE ai_audit_logs, ai_sessions, messages, conversations, channels CASCADE`)
	require.NoError(t, err)

	return db
}

func seedChannel(t *testing.T, db *database.DB) *model.Channel {
	t.Helper()

	repo := NewChannelRepository(db.DB)
	ch, err := repo.Upsert(context.Background(), model.ResolveChannelParams{
		PlatformAccountID: "acct-1",
		ExternalChannelID: "ext-ch-1",
		ChannelType:       model.ChannelTypePage,
		DisplayName:       "Careers Page",
	})
	require.NoError(t, err)
	return ch
}

func seedConversation(t *testing.T, db *database.DB, channelID string) *model.Conversation {
	t.Helper()

	repo := NewConversationRepository(db.DB)
	conv, err := repo.Upsert(context.Background(), model.UpsertConversationParams{
		ChannelID:       channelID,
		ParticipantID:   "user-1",
		ParticipantName: "Jamie Doe",
	})
	require.NoError(t, err)
	return conv
}

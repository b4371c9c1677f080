package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

type Conversation struct {
	ID                 string               `db:"id" json:"id"`
	ChannelID          string               `db:"channel_id" json:"channelId"`
	ExternalThreadID   *string              `db:"external_thread_id" json:"externalThreadId,omitempty"`
	ParticipantID      string               `db:"participant_id" json:"participantId"`
	ParticipantName    string               `db:"participant_name" json:"participantName"`
	ParticipantAvatar  *string              `db:"participant_avatar" json:"participantAvatar,omitempty"`
	ParticipantMeta    *json.RawMessage     `db:"participant_meta" json:"participantMeta,omitempty"`
	Status             ConversationStatus   `db:"status" json:"status"`
	AssignedAgentID    *string              `db:"assigned_agent_id" json:"assignedAgentId,omitempty"`
	AssignedAt         *time.Time           `db:"assigned_at" json:"assignedAt,omitempty"`
	Priority           ConversationPriority `db:"priority" json:"priority"`
	Tags               pq.StringArray       `db:"tags" json:"tags"`
	LastMessageAt      *time.Time           `db:"last_message_at" json:"lastMessageAt,omitempty"`
	LastMessagePreview *string              `db:"last_message_preview" json:"lastMessagePreview,omitempty"`
	UnreadCount        int                  `db:"unread_count" json:"unreadCount"`
	SlaDeadlineAt      *time.Time           `db:"sla_deadline_at" json:"slaDeadlineAt,omitempty"`
	CandidateID        *string              `db:"candidate_id" json:"candidateId,omitempty"`
	CreatedAt          time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updatedAt"`
}

// SlaBreached is the read-time derived breach fact; it is never stored.
func (c *Conversation) SlaBreached(now time.Time) bool {
	if c.SlaDeadlineAt == nil {
		return false
	}
	if c.Status == ConversationStatusResolved || c.Status == ConversationStatusSpam {
		return false
	}
	return now.After(*c.SlaDeadlineAt)
}

type UpsertConversationParams struct {
	ChannelID         string
	ParticipantID     string
	ParticipantName   string
	ParticipantAvatar *string
	ParticipantMeta   json.RawMessage
	ExternalThreadID  *string
}

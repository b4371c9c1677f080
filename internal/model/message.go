package model

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID                string           `db:"id" json:"id"`
	ConversationID    string           `db:"conversation_id" json:"conversationId"`
	ExternalMessageID *string          `db:"external_message_id" json:"externalMessageId,omitempty"`
	Direction         MessageDirection `db:"direction" json:"direction"`
	SenderType        SenderType       `db:"sender_type" json:"senderType"`
	SenderID          *string          `db:"sender_id" json:"senderId,omitempty"`
	SenderName        *string          `db:"sender_name" json:"senderName,omitempty"`
	ContentType       ContentType      `db:"content_type" json:"contentType"`
	Content           string           `db:"content" json:"content"`
	Attachments       *json.RawMessage `db:"attachments" json:"attachments,omitempty"`
	Metadata          *json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	Status            DeliveryStatus   `db:"status" json:"status"`
	ErrorMessage      *string          `db:"error_message" json:"errorMessage,omitempty"`
	AiGenerated       bool             `db:"ai_generated" json:"aiGenerated"`
	AiSessionID       *string          `db:"ai_session_id" json:"aiSessionId,omitempty"`
	IdempotencyKey    *string          `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	PlatformTimestamp time.Time        `db:"platform_timestamp" json:"platformTimestamp"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

// ToEventData returns JSON data for SSE message events.
func (m *Message) ToEventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":             m.ID,
		"conversationId": m.ConversationID,
		"direction":      m.Direction,
		"senderType":     m.SenderType,
		"contentType":    m.ContentType,
		"content":        m.Content,
		"createdAt":      m.CreatedAt,
	})
	return data
}

type CreateMessageParams struct {
	ConversationID    string
	ExternalMessageID *string
	Direction         MessageDirection
	SenderType        SenderType
	SenderID          *string
	SenderName        *string
	ContentType       ContentType
	Content           string
	Attachments       json.RawMessage
	Metadata          json.RawMessage
	Status            DeliveryStatus
	AiGenerated       bool
	AiSessionID       *string
	IdempotencyKey    *string
	PlatformTimestamp time.Time
}

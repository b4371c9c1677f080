package model

import (
	"time"
)

type AiSession struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversationId"`
	JobID          *string         `db:"job_id" json:"jobId,omitempty"`
	Mode           AiSessionMode   `db:"mode" json:"mode"`
	Status         AiSessionStatus `db:"status" json:"status"`
	Context        JSONMap         `db:"context" json:"context"`
	CurrentStep    *string         `db:"current_step" json:"currentStep,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	EndedAt        *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
}

type StartAiSessionParams struct {
	ConversationID string
	JobID          *string
	Mode           AiSessionMode
}

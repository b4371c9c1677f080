package model

import (
	"encoding/json"
	"time"
)

// AiAuditLog rows are append-only: there is no update path anywhere in the
// repository layer. Corrections are new edit/reject rows on the same session.
type AiAuditLog struct {
	ID                string           `db:"id" json:"id"`
	SessionID         string           `db:"session_id" json:"sessionId"`
	MessageID         *string          `db:"message_id" json:"messageId,omitempty"`
	ActionType        AuditActionType  `db:"action_type" json:"actionType"`
	InputPrompt       *string          `db:"input_prompt" json:"inputPrompt,omitempty"`
	ToolName          *string          `db:"tool_name" json:"toolName,omitempty"`
	ToolInput         *json.RawMessage `db:"tool_input" json:"toolInput,omitempty"`
	ToolOutput        *json.RawMessage `db:"tool_output" json:"toolOutput,omitempty"`
	GeneratedResponse *string          `db:"generated_response" json:"generatedResponse,omitempty"`
	FinalResponse     *string          `db:"final_response" json:"finalResponse,omitempty"`
	ConfidenceScore   *float64         `db:"confidence_score" json:"confidenceScore,omitempty"`
	ApprovedBy        *string          `db:"approved_by" json:"approvedBy,omitempty"`
	ProcessingTimeMs  *int             `db:"processing_time_ms" json:"processingTimeMs,omitempty"`
	TokenUsage        *int             `db:"token_usage" json:"tokenUsage,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
}

type RecordAuditParams struct {
	SessionID         string
	MessageID         *string
	ActionType        AuditActionType
	InputPrompt       *string
	ToolName          *string
	ToolInput         json.RawMessage
	ToolOutput        json.RawMessage
	GeneratedResponse *string
	FinalResponse     *string
	ConfidenceScore   *float64
	ApprovedBy        *string
	ProcessingTimeMs  *int
	TokenUsage        *int
}

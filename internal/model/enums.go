package model

type ChannelType string

const (
	ChannelTypePage   ChannelType = "page"
	ChannelTypeGroup  ChannelType = "group"
	ChannelTypeOA     ChannelType = "oa"
	ChannelTypeDirect ChannelType = "direct"
)

var ValidChannelTypes = []string{
	string(ChannelTypePage), string(ChannelTypeGroup),
	string(ChannelTypeOA), string(ChannelTypeDirect),
}

type ConversationStatus string

const (
	ConversationStatusOpen     ConversationStatus = "open"
	ConversationStatusPending  ConversationStatus = "pending"
	ConversationStatusResolved ConversationStatus = "resolved"
	ConversationStatusSpam     ConversationStatus = "spam"
)

var ValidConversationStatuses = []string{
	string(ConversationStatusOpen), string(ConversationStatusPending),
	string(ConversationStatusResolved), string(ConversationStatusSpam),
}

type ConversationPriority string

const (
	PriorityLow    ConversationPriority = "low"
	PriorityNormal ConversationPriority = "normal"
	PriorityHigh   ConversationPriority = "high"
	PriorityUrgent ConversationPriority = "urgent"
)

var ValidPriorities = []string{
	string(PriorityLow), string(PriorityNormal),
	string(PriorityHigh), string(PriorityUrgent),
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderBot      SenderType = "bot"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentFile     ContentType = "file"
	ContentSticker  ContentType = "sticker"
	ContentLocation ContentType = "location"
	ContentTemplate ContentType = "template"
)

var ValidContentTypes = []string{
	string(ContentText), string(ContentImage), string(ContentFile),
	string(ContentSticker), string(ContentLocation), string(ContentTemplate),
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

var ValidDeliveryStatuses = []string{
	string(DeliverySent), string(DeliveryDelivered),
	string(DeliveryRead), string(DeliveryFailed),
}

type AiSessionMode string

const (
	AiModeRuleBased AiSessionMode = "rule_based"
	AiModeLLMAgent  AiSessionMode = "llm_agent"
)

var ValidAiModes = []string{string(AiModeRuleBased), string(AiModeLLMAgent)}

type AiSessionStatus string

const (
	AiSessionActive    AiSessionStatus = "active"
	AiSessionPaused    AiSessionStatus = "paused"
	AiSessionCompleted AiSessionStatus = "completed"
)

type AuditActionType string

const (
	AuditActionGenerate AuditActionType = "generate"
	AuditActionToolCall AuditActionType = "tool_call"
	AuditActionApprove  AuditActionType = "approve"
	AuditActionReject   AuditActionType = "reject"
	AuditActionEdit     AuditActionType = "edit"
	AuditActionAutoSend AuditActionType = "auto_send"
)

var ValidAuditActions = []string{
	string(AuditActionGenerate), string(AuditActionToolCall),
	string(AuditActionApprove), string(AuditActionReject),
	string(AuditActionEdit), string(AuditActionAutoSend),
}

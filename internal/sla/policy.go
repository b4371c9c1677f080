package sla

import (
	"time"

	"github.com/recruitflow/inbox-server-go/internal/model"
)

// Policy computes the response deadline for a conversation. The exact
// formula is deployment-specific, so it is pluggable.
type Policy interface {
	Deadline(priority model.ConversationPriority, from time.Time) time.Time
}

// FirstResponsePolicy maps priority to a first-response window.
type FirstResponsePolicy struct {
	Low    time.Duration
	Normal time.Duration
	High   time.Duration
	Urgent time.Duration
}

func DefaultFirstResponsePolicy() FirstResponsePolicy {
	return FirstResponsePolicy{
		Low:    24 * time.Hour,
		Normal: 4 * time.Hour,
		High:   time.Hour,
		Urgent: 15 * time.Minute,
	}
}

func (p FirstResponsePolicy) Deadline(priority model.ConversationPriority, from time.Time) time.Time {
	switch priority {
	case model.PriorityUrgent:
		return from.Add(p.Urgent)
	case model.PriorityHigh:
		return from.Add(p.High)
	case model.PriorityLow:
		return from.Add(p.Low)
	default:
		return from.Add(p.Normal)
	}
}

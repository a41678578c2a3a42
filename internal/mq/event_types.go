package mq

import (
	"time"

	"mailtriage/internal/model"
)

// Routing keys published on the events exchange.
const (
	RoutingKeyRouted   = "mail.routed"
	RoutingKeyPending  = "mail.pending"
	RoutingKeyApproved = "mail.approved"
	RoutingKeyRejected = "mail.rejected"
)

// TriageEventPayload is the body of every triage event.
type TriageEventPayload struct {
	MessageID  string         `json:"message_id"`
	Subject    string         `json:"subject"`
	Outcome    string         `json:"outcome"`
	Building   string         `json:"building,omitempty"`
	Category   model.Category `json:"category,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Folder     string         `json:"folder,omitempty"`
	TaskTitle  string         `json:"task_title,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

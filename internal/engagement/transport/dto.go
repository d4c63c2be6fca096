package transport

import (
	"strings"
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// Request DTOs

type SubmitMessageRequest struct {
	MessageID  string    `json:"messageId" validate:"required,min=1,max=512"`
	Subject    string    `json:"subject" validate:"max=1000"`
	Sender     string    `json:"sender" validate:"required,email"`
	Recipient  string    `json:"recipient,omitempty" validate:"omitempty,email"`
	Body       string    `json:"body" validate:"required"`
	ReceivedAt time.Time `json:"receivedAt,omitzero"`
	InReplyTo  string    `json:"inReplyTo,omitempty"`
	References []string  `json:"references,omitempty"`
}

func (r SubmitMessageRequest) ToDomain() domain.InboundMessage {
	receivedAt := r.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return domain.InboundMessage{
		MessageID:  r.MessageID,
		Subject:    r.Subject,
		Sender:     r.Sender,
		Recipient:  r.Recipient,
		Body:       r.Body,
		ReceivedAt: receivedAt,
		InReplyTo:  r.InReplyTo,
		References: strings.Join(r.References, " "),
	}
}

type FeedbackRequest struct {
	MessageID      string `json:"messageId" validate:"required"`
	Classification string `json:"classification" validate:"required,oneof=not_interested maybe_interested interested"`
}

type PauseSequenceRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=200"`
}

type ReviewSequenceRequest struct {
	Approve bool `json:"approve"`
}

// Response DTOs

type FeedbackResponse struct {
	MessageID string `json:"messageId"`
	NewScore  int    `json:"newScore"`
}

type StatsResponse struct {
	Pipeline  any `json:"pipeline"`
	Threads   any `json:"threads"`
	Sequences any `json:"sequences"`
}

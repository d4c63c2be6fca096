package email

import (
	"context"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
)

// StepDelivery adapts the mail transport to the sequence scheduler's step
// sending contract.
type StepDelivery struct {
	sender Sender
}

func NewStepDelivery(sender Sender) StepDelivery {
	return StepDelivery{sender: sender}
}

func (d StepDelivery) SendStep(ctx context.Context, contact domain.Contact, subject, body string) error {
	if contact.Email == "" {
		return apperr.Validation("contact has no email address").WithOp("email.SendStep")
	}

	html, err := RenderSequenceStepHTML(subject, body)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, contact.Email, subject, html)
}

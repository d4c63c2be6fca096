package email

import (
	"context"
	"strings"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

// Responder sends an immediate acknowledgment back to the sender of a
// genuine reply, ahead of any scheduled follow-up sequence. Not-interested
// replies get no acknowledgment; the opt-out path covers those.
type Responder struct {
	sender Sender
	log    *logger.Logger
}

func NewResponder(sender Sender, log *logger.Logger) *Responder {
	return &Responder{sender: sender, log: log}
}

// ShouldRespond reports whether the classification warrants an immediate
// reply to the sender.
func ShouldRespond(classification domain.Classification) bool {
	return classification == domain.Interested || classification == domain.MaybeInterested
}

// Respond renders and sends the acknowledgment. The subject keeps the
// conversation threaded by reusing the inbound subject with a reply prefix.
func (r *Responder) Respond(ctx context.Context, contact domain.Contact, msg domain.InboundMessage, classification domain.Classification) error {
	if msg.Sender == "" {
		return apperr.Validation("message has no sender address").WithOp("email.Respond")
	}

	subject := ReplySubject(msg.Subject)
	body := responseBody(contact, msg, classification)
	html, err := RenderSequenceStepHTML(subject, body)
	if err != nil {
		return err
	}
	if err := r.sender.Send(ctx, msg.Sender, subject, html); err != nil {
		return err
	}
	r.log.Info("acknowledgment sent", "recipient", msg.Sender, "classification", classification.String())
	return nil
}

// ReplySubject prefixes the subject with "Re: " unless it already carries
// one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func responseBody(contact domain.Contact, msg domain.InboundMessage, classification domain.Classification) string {
	firstName := contact.FirstName
	if firstName == "" {
		firstName = "there"
	}
	company := contact.Company
	if company == "" {
		company = "your business"
	}

	var b strings.Builder
	b.WriteString("Hi " + firstName + ",\n\n")

	if classification == domain.Interested {
		b.WriteString("Thank you for your interest! I'm excited to learn more about " + company + " and how we can help.\n\n")
		body := strings.ToLower(msg.Body)
		if strings.Contains(body, "pricing") || strings.Contains(body, "cost") {
			b.WriteString("I'll prepare pricing information tailored to your needs.\n\n")
		}
		if strings.Contains(body, "demo") {
			b.WriteString("I'd be happy to walk you through a personalized demo of the solution.\n\n")
		}
		b.WriteString("Are you available for a short call this week to discuss your specific requirements?\n\n")
	} else {
		b.WriteString("Thank you for your response to our recent outreach. I understand you might need more information to make a decision.\n\n")
		if question := firstQuestion(msg.Body); question != "" {
			b.WriteString("Regarding your question - \"" + question + "\" - I'd be happy to provide more details.\n\n")
		}
		b.WriteString("I'd love to schedule a brief call to discuss how we can help " + company + " reach its goals. Would you be available this week or next?\n\n")
	}

	b.WriteString("Best regards")
	return b.String()
}

// firstQuestion pulls the first question sentence out of the body, if any.
func firstQuestion(body string) string {
	for _, sentence := range strings.Split(body, ".") {
		sentence = strings.TrimSpace(sentence)
		if strings.Contains(sentence, "?") {
			return sentence
		}
	}
	return ""
}

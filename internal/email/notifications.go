package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/logger"
)

// Priority keyword tiers for sales alerts. High priority means the reply
// suggests urgency or an approved budget.
var (
	highPriorityKeywords = []string{
		"urgent", "asap", "immediately", "today", "this week",
		"budget approved", "ready to buy", "decision maker",
	}
)

// DailySummary carries the day's pipeline counters for the recap email.
type DailySummary struct {
	Date              time.Time
	Processed         int
	Interested        int
	MaybeInterested   int
	NotInterested     int
	AutomatedFiltered int
	StepsSent         int
	ResponsesSent     int
	Opportunities     int
	FallbackUsed      int
	Errors            int
}

// Notifier sends sales-team alerts. A Notifier with no recipients is a
// no-op, matching a deployment that only wants the contact-facing sends.
type Notifier struct {
	sender     Sender
	recipients []string
	log        *logger.Logger
}

func NewNotifier(sender Sender, recipients []string, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, recipients: recipients, log: log}
}

// NotifyInterestedLead alerts the sales team about a reply classified as
// interested. Delivery failures are logged per recipient; one bad mailbox
// must not block the rest. Returns the number of alerts delivered.
func (n *Notifier) NotifyInterestedLead(ctx context.Context, contact domain.Contact, msg domain.InboundMessage, result domain.ClassificationResult, leadScore int) int {
	if len(n.recipients) == 0 {
		return 0
	}

	priority := alertPriority(msg)
	action := "Respond within 4 hours"
	if priority == "high" {
		action = "Respond immediately (within 1 hour)"
	}

	subject := fmt.Sprintf(subjectInterestedLeadFmt, contact.FullName(), priority)
	content, err := renderEmailTemplate("interested_lead.html", interestedLeadData{
		baseEmailData:     baseEmailData{Title: subject, Heading: "New interested lead"},
		ContactName:       contact.FullName(),
		ContactEmail:      contact.Email,
		Classification:    result.Classification.String(),
		ConfidencePct:     result.Confidence * 100,
		LeadScore:         leadScore,
		Priority:          strings.ToUpper(priority),
		EmailSubject:      msg.Subject,
		EmailBody:         msg.Body,
		RecommendedAction: action,
	})
	if err != nil {
		n.log.Error("rendering interested lead alert failed", "error", err)
		return 0
	}

	return n.sendToAll(ctx, subject, content)
}

// NotifyPendingReview alerts the team that a drafted step needs approval.
// Returns the number of alerts delivered.
func (n *Notifier) NotifyPendingReview(ctx context.Context, contact domain.Contact, sequenceType string, stepNumber int, draftSubject, draftBody string) int {
	if len(n.recipients) == 0 {
		return 0
	}

	subject := fmt.Sprintf(subjectPendingReviewFmt, contact.FullName())
	content, err := renderEmailTemplate("pending_review.html", pendingReviewData{
		baseEmailData: baseEmailData{Title: subject, Heading: "Follow-up step pending review"},
		ContactName:   contact.FullName(),
		ContactEmail:  contact.Email,
		SequenceType:  sequenceType,
		StepNumber:    stepNumber,
		DraftSubject:  draftSubject,
		DraftBody:     draftBody,
	})
	if err != nil {
		n.log.Error("rendering pending review alert failed", "error", err)
		return 0
	}

	return n.sendToAll(ctx, subject, content)
}

// SendDailySummary mails the day's processing counters to the team.
func (n *Notifier) SendDailySummary(ctx context.Context, summary DailySummary) int {
	if len(n.recipients) == 0 {
		return 0
	}

	date := summary.Date.Format("2006-01-02")
	subject := fmt.Sprintf(subjectDailySummaryFmt, date)
	content, err := renderEmailTemplate("daily_summary.html", dailySummaryData{
		baseEmailData:     baseEmailData{Title: subject, Heading: "Daily summary"},
		Date:              date,
		Processed:         summary.Processed,
		Interested:        summary.Interested,
		MaybeInterested:   summary.MaybeInterested,
		NotInterested:     summary.NotInterested,
		AutomatedFiltered: summary.AutomatedFiltered,
		StepsSent:         summary.StepsSent,
		ResponsesSent:     summary.ResponsesSent,
		Opportunities:     summary.Opportunities,
		FallbackUsed:      summary.FallbackUsed,
		Errors:            summary.Errors,
	})
	if err != nil {
		n.log.Error("rendering daily summary failed", "error", err)
		return 0
	}

	return n.sendToAll(ctx, subject, content)
}

func (n *Notifier) sendToAll(ctx context.Context, subject, content string) int {
	delivered := 0
	for _, recipient := range n.recipients {
		if err := n.sender.Send(ctx, recipient, subject, content); err != nil {
			n.log.Error("notification send failed", "recipient", recipient, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func alertPriority(msg domain.InboundMessage) string {
	body := strings.ToLower(msg.Body)
	for _, kw := range highPriorityKeywords {
		if strings.Contains(body, kw) {
			return "high"
		}
	}
	return "normal"
}

// Package events defines the domain events published across the reply
// engagement pipeline. Wiring between publishers and subscribers happens in
// the module constructors; handlers must tolerate async delivery.
package events

import (
	"time"

	platformevents "replyflow_backend/platform/events"
	"replyflow_backend/platform/logger"
)

// Re-exported so modules depend on one events package.
type (
	Bus         = platformevents.Bus
	Event       = platformevents.Event
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	BaseEvent   = platformevents.BaseEvent
)

var NewBaseEvent = platformevents.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *platformevents.InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// ReplyReceived fires when an inbound message survives dedup and automated
// reply filtering and is attached to a conversation thread.
type ReplyReceived struct {
	BaseEvent
	MessageID string `json:"messageId"`
	ThreadKey string `json:"threadKey"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	NewThread bool   `json:"newThread"`
}

func (ReplyReceived) EventName() string { return "engagement.reply_received" }

// ReplyClassified fires after classification, whether from the AI
// collaborator or the heuristic fallback.
type ReplyClassified struct {
	BaseEvent
	MessageID      string  `json:"messageId"`
	ThreadKey      string  `json:"threadKey"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Fallback       bool    `json:"fallback"`
}

func (ReplyClassified) EventName() string { return "engagement.reply_classified" }

// LeadScoreApplied fires once a score delta has been applied to the contact.
type LeadScoreApplied struct {
	BaseEvent
	ContactID  string `json:"contactId"`
	MessageID  string `json:"messageId"`
	Delta      int    `json:"delta"`
	NewScore   int    `json:"newScore"`
	CampaignID string `json:"campaignId,omitempty"`
}

func (LeadScoreApplied) EventName() string { return "engagement.lead_score_applied" }

// OpportunityRecommended fires when the opportunity heuristics decide a
// pipeline record should be opened for a contact.
type OpportunityRecommended struct {
	BaseEvent
	ContactID      string   `json:"contactId"`
	Reasons        []string `json:"reasons"`
	Stage          string   `json:"stage"`
	EstimatedValue float64  `json:"estimatedValue"`
}

func (OpportunityRecommended) EventName() string { return "engagement.opportunity_recommended" }

// SequenceEnrolled fires when a contact enters a follow-up sequence.
// ReplacedType is set when the enrollment preempted a lower-priority one.
type SequenceEnrolled struct {
	BaseEvent
	SequenceID   string    `json:"sequenceId"`
	ContactID    string    `json:"contactId"`
	SequenceType string    `json:"sequenceType"`
	ReplacedType string    `json:"replacedType,omitempty"`
	NextDueAt    time.Time `json:"nextDueAt"`
}

func (SequenceEnrolled) EventName() string { return "sequences.enrolled" }

// SequenceStepSent fires for each delivered step.
type SequenceStepSent struct {
	BaseEvent
	SequenceID   string `json:"sequenceId"`
	ContactID    string `json:"contactId"`
	SequenceType string `json:"sequenceType"`
	StepNumber   int    `json:"stepNumber"`
	Completed    bool   `json:"completed"`
}

func (SequenceStepSent) EventName() string { return "sequences.step_sent" }

// SequenceStepPendingReview fires when a step requires human approval before
// it can be sent.
type SequenceStepPendingReview struct {
	BaseEvent
	SequenceID   string `json:"sequenceId"`
	ContactID    string `json:"contactId"`
	SequenceType string `json:"sequenceType"`
	StepNumber   int    `json:"stepNumber"`
	Subject      string `json:"subject"`
}

func (SequenceStepPendingReview) EventName() string { return "sequences.step_pending_review" }

// SequenceCompleted fires when an enrollment advances past its final step.
type SequenceCompleted struct {
	BaseEvent
	SequenceID   string `json:"sequenceId"`
	ContactID    string `json:"contactId"`
	SequenceType string `json:"sequenceType"`
	StepsSent    int    `json:"stepsSent"`
}

func (SequenceCompleted) EventName() string { return "sequences.completed" }

// ManualFeedbackRecorded fires when an operator corrects a classification.
type ManualFeedbackRecorded struct {
	BaseEvent
	MessageID     string `json:"messageId"`
	Original      string `json:"original"`
	Corrected     string `json:"corrected"`
	PreviousDelta int    `json:"previousDelta"`
	RevisedDelta  int    `json:"revisedDelta"`
}

func (ManualFeedbackRecorded) EventName() string { return "engagement.manual_feedback_recorded" }

// Package sequences drives per-contact, multi-step follow-up state machines:
// selecting, starting, advancing, preempting, and completing nurture
// sequences gated by time delays and condition checks.
package sequences

import "replyflow_backend/internal/engagement/domain"

// Priority is the send-priority tier of a step.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Condition names evaluated by the gating registry.
const (
	CondNoUnsubscribe       = "no_unsubscribe"
	CondNoResponseToStep    = "no_response_to_previous"
	CondNoMeetingScheduled  = "no_meeting_scheduled"
	CondNoDemoScheduled     = "no_demo_scheduled"
	CondNoResponseToPricing = "no_response_to_pricing"
	CondMeetingToday        = "meeting_today"
	CondMeetingCompleted    = "meeting_completed"
)

// Step is one entry of a sequence definition. Delay counts from the previous
// step (or from enrollment for the first step).
type Step struct {
	Number          int
	DelayDays       int
	TemplateKey     string
	SubjectTemplate string
	Conditions      []string
	Priority        Priority
	RequiresReview  bool
}

// Definition is a static, immutable catalog entry for one sequence type.
type Definition struct {
	Type  domain.SequenceType
	Steps []Step
}

// definitions is the static sequence catalog.
var definitions = map[domain.SequenceType]Definition{
	domain.SequenceNotInterestedNurture: {
		Type: domain.SequenceNotInterestedNurture,
		Steps: []Step{
			{Number: 1, DelayDays: 30, TemplateKey: "not_interested_nurture_1", SubjectTemplate: "Quick industry insight for {company_name}", Conditions: []string{CondNoUnsubscribe}, Priority: PriorityLow},
			{Number: 2, DelayDays: 60, TemplateKey: "not_interested_nurture_2", SubjectTemplate: "New feature that might interest you", Conditions: []string{CondNoUnsubscribe}, Priority: PriorityLow},
			{Number: 3, DelayDays: 90, TemplateKey: "not_interested_nurture_3", SubjectTemplate: "Quarterly check-in", Conditions: []string{CondNoUnsubscribe}, Priority: PriorityLow},
		},
	},
	domain.SequenceMaybeInterestedNurture: {
		Type: domain.SequenceMaybeInterestedNurture,
		Steps: []Step{
			{Number: 1, DelayDays: 3, TemplateKey: "maybe_interested_follow_1", SubjectTemplate: "Following up on your questions", Priority: PriorityNormal},
			{Number: 2, DelayDays: 7, TemplateKey: "maybe_interested_follow_2", SubjectTemplate: "Thought you might find this helpful", Conditions: []string{CondNoResponseToStep}, Priority: PriorityNormal},
			{Number: 3, DelayDays: 14, TemplateKey: "maybe_interested_follow_3", SubjectTemplate: "Quick check-in about your needs", Conditions: []string{CondNoResponseToStep}, Priority: PriorityNormal},
			{Number: 4, DelayDays: 30, TemplateKey: "maybe_interested_follow_4", SubjectTemplate: "Is now a better time?", Conditions: []string{CondNoResponseToStep}, Priority: PriorityLow},
		},
	},
	domain.SequenceInterestedAcceleration: {
		Type: domain.SequenceInterestedAcceleration,
		Steps: []Step{
			{Number: 1, DelayDays: 1, TemplateKey: "interested_immediate_follow", SubjectTemplate: "Next steps for {company_name}", Priority: PriorityHigh},
			{Number: 2, DelayDays: 3, TemplateKey: "interested_follow_2", SubjectTemplate: "Scheduling our conversation", Conditions: []string{CondNoMeetingScheduled}, Priority: PriorityHigh},
			{Number: 3, DelayDays: 7, TemplateKey: "interested_follow_3", SubjectTemplate: "Don't let this opportunity slip away", Conditions: []string{CondNoMeetingScheduled}, Priority: PriorityNormal, RequiresReview: true},
		},
	},
	domain.SequenceDemoFollowUp: {
		Type: domain.SequenceDemoFollowUp,
		Steps: []Step{
			{Number: 1, DelayDays: 1, TemplateKey: "demo_immediate_follow", SubjectTemplate: "Demo scheduling for {company_name}", Priority: PriorityHigh},
			{Number: 2, DelayDays: 3, TemplateKey: "demo_follow_2", SubjectTemplate: "Demo options and availability", Conditions: []string{CondNoDemoScheduled}, Priority: PriorityHigh},
			{Number: 3, DelayDays: 7, TemplateKey: "demo_follow_3", SubjectTemplate: "Quick demo alternative", Conditions: []string{CondNoDemoScheduled}, Priority: PriorityNormal},
		},
	},
	domain.SequencePricingFollowUp: {
		Type: domain.SequencePricingFollowUp,
		Steps: []Step{
			{Number: 1, DelayDays: 1, TemplateKey: "pricing_immediate_follow", SubjectTemplate: "Pricing information for {company_name}", Priority: PriorityHigh},
			{Number: 2, DelayDays: 3, TemplateKey: "pricing_follow_2", SubjectTemplate: "Custom pricing proposal", Conditions: []string{CondNoResponseToPricing}, Priority: PriorityHigh},
			{Number: 3, DelayDays: 7, TemplateKey: "pricing_follow_3", SubjectTemplate: "Questions about our pricing?", Conditions: []string{CondNoResponseToPricing}, Priority: PriorityNormal},
		},
	},
	domain.SequenceMeetingFollowUp: {
		Type: domain.SequenceMeetingFollowUp,
		Steps: []Step{
			{Number: 1, DelayDays: 1, TemplateKey: "meeting_confirmation", SubjectTemplate: "Confirming our meeting", Priority: PriorityHigh},
			{Number: 2, DelayDays: 1, TemplateKey: "meeting_day_reminder", SubjectTemplate: "Looking forward to our call today", Conditions: []string{CondMeetingToday}, Priority: PriorityHigh},
			{Number: 3, DelayDays: 1, TemplateKey: "meeting_follow_up", SubjectTemplate: "Thank you for your time yesterday", Conditions: []string{CondMeetingCompleted}, Priority: PriorityHigh},
		},
	},
}

// DefinitionFor returns the catalog entry for a sequence type.
func DefinitionFor(t domain.SequenceType) (Definition, bool) {
	def, ok := definitions[t]
	return def, ok
}

// StepCount returns the number of steps defined for a sequence type.
func StepCount(t domain.SequenceType) int {
	return len(definitions[t].Steps)
}

package domain

import "strings"

// EngagementFactors is the closed set of positive signals detected in a reply
// body. Each factor maps to a fixed score multiplier in the scoring engine.
type EngagementFactors struct {
	QuestionAsking   bool
	DetailedResponse bool
	PricingInquiry   bool
	DemoRequest      bool
	MeetingRequest   bool
}

// NegativeSignals is the closed set of detected negative indicators. Each
// signal maps to a fixed score penalty.
type NegativeSignals struct {
	UnsubscribeRequest bool
	CompetitorMention  bool
	BudgetConcern      bool
	TimingIssue        bool
}

// detailedResponseThreshold is the body length above which a reply counts as
// a detailed response.
const detailedResponseThreshold = 200

var (
	pricingKeywords = []string{"price", "cost", "pricing", "budget", "quote", "proposal"}
	demoKeywords    = []string{"demo", "demonstration", "show me", "walk through", "preview"}
	meetingKeywords = []string{"meeting", "call", "schedule", "appointment", "discuss", "talk"}

	unsubscribeKeywords = []string{"unsubscribe", "remove me", "stop sending", "opt out"}
	competitorKeywords  = []string{"already have", "current provider", "existing solution", "competitor"}
	budgetKeywords      = []string{"expensive", "budget", "afford", "cost too much", "price too high"}
	timingKeywords      = []string{"not right now", "maybe later", "future", "next year", "busy"}
)

// DetectEngagementFactors scans the message body for positive buying signals.
func DetectEngagementFactors(msg InboundMessage) EngagementFactors {
	body := strings.ToLower(msg.Body)

	return EngagementFactors{
		QuestionAsking:   strings.Contains(msg.Body, "?"),
		DetailedResponse: len(strings.TrimSpace(msg.Body)) > detailedResponseThreshold,
		PricingInquiry:   containsAny(body, pricingKeywords),
		DemoRequest:      containsAny(body, demoKeywords),
		MeetingRequest:   containsAny(body, meetingKeywords),
	}
}

// DetectNegativeSignals scans the message body for negative indicators.
func DetectNegativeSignals(msg InboundMessage) NegativeSignals {
	body := strings.ToLower(msg.Body)

	return NegativeSignals{
		UnsubscribeRequest: containsAny(body, unsubscribeKeywords),
		CompetitorMention:  containsAny(body, competitorKeywords),
		BudgetConcern:      containsAny(body, budgetKeywords),
		TimingIssue:        containsAny(body, timingKeywords),
	}
}

// HasStrongSignal reports whether any of the factors that justify opening an
// opportunity on their own are present.
func (f EngagementFactors) HasStrongSignal() bool {
	return f.PricingInquiry || f.DemoRequest || f.MeetingRequest
}

// Names returns the active factor names in a fixed order, for audit
// breakdowns and notifications.
func (f EngagementFactors) Names() []string {
	var names []string
	if f.PricingInquiry {
		names = append(names, "pricing_inquiry")
	}
	if f.DemoRequest {
		names = append(names, "demo_request")
	}
	if f.MeetingRequest {
		names = append(names, "meeting_request")
	}
	if f.QuestionAsking {
		names = append(names, "question_asking")
	}
	if f.DetailedResponse {
		names = append(names, "detailed_response")
	}
	return names
}

// Names returns the active signal names in a fixed order.
func (n NegativeSignals) Names() []string {
	var names []string
	if n.UnsubscribeRequest {
		names = append(names, "unsubscribe_request")
	}
	if n.CompetitorMention {
		names = append(names, "competitor_mention")
	}
	if n.BudgetConcern {
		names = append(names, "budget_concerns")
	}
	if n.TimingIssue {
		names = append(names, "timing_issues")
	}
	return names
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

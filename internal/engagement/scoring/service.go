package scoring

import (
	"math"
	"strings"

	"replyflow_backend/internal/engagement/domain"
)

// Base score per classification category.
const (
	baseNotInterested   = -10
	baseMaybeInterested = 5
	baseInterested      = 15
)

// Engagement multipliers. Applied as a multiplicative stack over the base.
const (
	multiplierQuestionAsking   = 1.4
	multiplierDetailedResponse = 1.3
	multiplierPricingInquiry   = 2.0
	multiplierDemoRequest      = 2.5
	multiplierMeetingRequest   = 3.0
)

// Penalties per negative signal.
const (
	penaltyUnsubscribe = 25
	penaltyCompetitor  = 5
	penaltyBudget      = 3
	penaltyTiming      = 2
)

// highValueCampaignAdjustment is added when the attributed campaign name
// matches the high-value vocabulary.
const highValueCampaignAdjustment = 5

var highValueIndicators = []string{"enterprise", "premium", "executive", "vip"}

// Score computes the lead-score delta for one classified message. The result
// carries the full named breakdown and is reproducible from the same inputs:
// no randomness, no wall clock.
func Score(msg domain.InboundMessage, classification domain.Classification, attribution *domain.CampaignAttribution) domain.ScoreDelta {
	var base int
	switch classification {
	case domain.NotInterested:
		base = baseNotInterested
	case domain.MaybeInterested:
		base = baseMaybeInterested
	case domain.Interested:
		base = baseInterested
	}

	delta := domain.ScoreDelta{
		BaseScore:   base,
		Attribution: attribution,
	}

	factors := domain.DetectEngagementFactors(msg)
	if factors.PricingInquiry {
		delta.Multipliers = append(delta.Multipliers, domain.Multiplier{Name: "pricing_inquiry", Value: multiplierPricingInquiry})
	}
	if factors.DemoRequest {
		delta.Multipliers = append(delta.Multipliers, domain.Multiplier{Name: "demo_request", Value: multiplierDemoRequest})
	}
	if factors.MeetingRequest {
		delta.Multipliers = append(delta.Multipliers, domain.Multiplier{Name: "meeting_request", Value: multiplierMeetingRequest})
	}
	if factors.QuestionAsking {
		delta.Multipliers = append(delta.Multipliers, domain.Multiplier{Name: "question_asking", Value: multiplierQuestionAsking})
	}
	if factors.DetailedResponse {
		delta.Multipliers = append(delta.Multipliers, domain.Multiplier{Name: "detailed_response", Value: multiplierDetailedResponse})
	}

	signals := domain.DetectNegativeSignals(msg)
	if signals.UnsubscribeRequest {
		delta.Penalties = append(delta.Penalties, domain.Penalty{Name: "unsubscribe_request", Value: penaltyUnsubscribe})
	}
	if signals.CompetitorMention {
		delta.Penalties = append(delta.Penalties, domain.Penalty{Name: "competitor_mention", Value: penaltyCompetitor})
	}
	if signals.BudgetConcern {
		delta.Penalties = append(delta.Penalties, domain.Penalty{Name: "budget_concerns", Value: penaltyBudget})
	}
	if signals.TimingIssue {
		delta.Penalties = append(delta.Penalties, domain.Penalty{Name: "timing_issues", Value: penaltyTiming})
	}

	if attribution != nil && isHighValueCampaign(attribution.CampaignName) {
		delta.CampaignAdjustment = highValueCampaignAdjustment
	}

	delta.FinalDelta = int(math.Round(float64(base)*delta.TotalMultiplier())) -
		delta.TotalPenalty() + delta.CampaignAdjustment

	return delta
}

func isHighValueCampaign(name string) bool {
	lower := strings.ToLower(name)
	for _, indicator := range highValueIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

package scoring

import (
	"fmt"
	"strings"

	"replyflow_backend/internal/engagement/domain"
)

// Default opportunity-open threshold on the accumulated lead score.
const DefaultOpportunityThreshold = 50

const baseOpportunityValue = 10000

// ShouldOpenOpportunity decides whether a sales opportunity should be opened.
// Any one of the three triggers suffices; an already-open opportunity on the
// contact's account short-circuits the decision to false.
func ShouldOpenOpportunity(contact domain.Contact, classification domain.Classification, currentScore int, factors domain.EngagementFactors, hasOpenOpportunity bool, threshold int) domain.OpportunityDecision {
	if threshold <= 0 {
		threshold = DefaultOpportunityThreshold
	}

	if hasOpenOpportunity {
		return domain.OpportunityDecision{
			ShouldCreate: false,
			Reasons:      []string{"opportunity already exists"},
			ExistingOpen: true,
		}
	}

	decision := domain.OpportunityDecision{
		RecommendedStage: recommendedStage(factors),
		EstimatedValue:   estimatedValue(contact, factors),
	}

	if classification == domain.Interested {
		decision.ShouldCreate = true
		decision.Reasons = append(decision.Reasons, "high interest classification")
	}
	if currentScore >= threshold {
		decision.ShouldCreate = true
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("lead score %d at or above threshold %d", currentScore, threshold))
	}
	if factors.HasStrongSignal() {
		decision.ShouldCreate = true
		decision.Reasons = append(decision.Reasons, "strong buying signals detected")
	}

	return decision
}

// recommendedStage picks the opportunity stage from the strongest engagement
// signal present.
func recommendedStage(factors domain.EngagementFactors) string {
	switch {
	case factors.MeetingRequest:
		return "Qualification"
	case factors.DemoRequest:
		return "Needs Analysis"
	case factors.PricingInquiry:
		return "Proposal/Price Quote"
	default:
		return "Prospecting"
	}
}

// estimatedValue sizes the opportunity from the contact's company signal and
// engagement level.
func estimatedValue(contact domain.Contact, factors domain.EngagementFactors) int {
	value := float64(baseOpportunityValue)

	company := strings.ToLower(contact.Company)
	for _, indicator := range []string{"enterprise", "corp", "inc"} {
		if strings.Contains(company, indicator) {
			value *= 2
			break
		}
	}

	if factors.PricingInquiry {
		value *= 1.5
	}
	if factors.DemoRequest {
		value *= 1.3
	}

	return int(value)
}

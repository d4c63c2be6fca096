package scoring

import (
	"testing"

	"replyflow_backend/internal/engagement/domain"
)

func TestShouldOpenOpportunity_ExistingOpenShortCircuits(t *testing.T) {
	decision := ShouldOpenOpportunity(domain.Contact{}, domain.Interested, 100,
		domain.EngagementFactors{MeetingRequest: true}, true, 50)

	if decision.ShouldCreate {
		t.Fatal("expected no new opportunity while one is open")
	}
	if !decision.ExistingOpen {
		t.Fatal("expected ExistingOpen flag")
	}
}

func TestShouldOpenOpportunity_Triggers(t *testing.T) {
	cases := []struct {
		name           string
		classification domain.Classification
		score          int
		factors        domain.EngagementFactors
		wantCreate     bool
	}{
		{"interested classification", domain.Interested, 0, domain.EngagementFactors{}, true},
		{"score at threshold", domain.MaybeInterested, 50, domain.EngagementFactors{}, true},
		{"strong buying signal", domain.MaybeInterested, 0, domain.EngagementFactors{PricingInquiry: true}, true},
		{"no trigger", domain.MaybeInterested, 49, domain.EngagementFactors{QuestionAsking: true}, false},
		{"not interested low score", domain.NotInterested, 0, domain.EngagementFactors{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := ShouldOpenOpportunity(domain.Contact{}, tc.classification, tc.score, tc.factors, false, 50)
			if decision.ShouldCreate != tc.wantCreate {
				t.Fatalf("ShouldCreate = %v, want %v (reasons %v)", decision.ShouldCreate, tc.wantCreate, decision.Reasons)
			}
			if tc.wantCreate && len(decision.Reasons) == 0 {
				t.Fatal("expected at least one reason for a positive decision")
			}
		})
	}
}

func TestShouldOpenOpportunity_StageFromStrongestSignal(t *testing.T) {
	cases := []struct {
		factors domain.EngagementFactors
		want    string
	}{
		{domain.EngagementFactors{MeetingRequest: true, DemoRequest: true, PricingInquiry: true}, "Qualification"},
		{domain.EngagementFactors{DemoRequest: true, PricingInquiry: true}, "Needs Analysis"},
		{domain.EngagementFactors{PricingInquiry: true}, "Proposal/Price Quote"},
		{domain.EngagementFactors{}, "Prospecting"},
	}

	for _, tc := range cases {
		decision := ShouldOpenOpportunity(domain.Contact{}, domain.Interested, 0, tc.factors, false, 50)
		if decision.RecommendedStage != tc.want {
			t.Fatalf("factors %+v: stage %q, want %q", tc.factors, decision.RecommendedStage, tc.want)
		}
	}
}

func TestShouldOpenOpportunity_EstimatedValue(t *testing.T) {
	cases := []struct {
		name    string
		contact domain.Contact
		factors domain.EngagementFactors
		want    int
	}{
		{"base value", domain.Contact{Company: "Smallshop"}, domain.EngagementFactors{}, 10000},
		{"enterprise company", domain.Contact{Company: "Acme Corp"}, domain.EngagementFactors{}, 20000},
		{"enterprise with pricing", domain.Contact{Company: "Acme Corp"}, domain.EngagementFactors{PricingInquiry: true}, 30000},
		{"demo interest", domain.Contact{Company: "Smallshop"}, domain.EngagementFactors{DemoRequest: true}, 13000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := ShouldOpenOpportunity(tc.contact, domain.Interested, 0, tc.factors, false, 50)
			if decision.EstimatedValue != tc.want {
				t.Fatalf("estimated value %d, want %d", decision.EstimatedValue, tc.want)
			}
		})
	}
}

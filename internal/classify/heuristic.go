package classify

import (
	"context"
	"fmt"
	"strings"

	"replyflow_backend/internal/engagement/domain"
)

// Keyword tiers checked in order. Rejection signals win over interest
// signals so "not interested in a demo" classifies negative.
var (
	notInterestedKeywords = []string{
		"not interested", "no thank", "unsubscribe", "remove", "stop",
		"don't contact", "not looking", "already have", "satisfied with current",
	}
	interestedKeywords = []string{
		"interested", "pricing", "cost", "demo", "meeting", "call",
		"schedule", "discuss", "more information", "tell me more",
	}
	maybeKeywords = []string{
		"maybe", "perhaps", "might be", "could be", "future", "later",
		"not right now", "busy", "timing",
	}
)

// Heuristic is the rule-based classifier. It never errors, which makes it a
// safe fallback behind the model-backed classifier.
type Heuristic struct{}

func NewHeuristic() Heuristic { return Heuristic{} }

func (Heuristic) Classify(_ context.Context, msg domain.InboundMessage, _ string) (domain.ClassificationResult, error) {
	body := strings.ToLower(msg.Body)
	subject := strings.ToLower(msg.Subject)

	if kw, ok := firstMatch(notInterestedKeywords, body, subject); ok {
		return keywordResult(domain.NotInterested, 0.8, kw), nil
	}
	if kw, ok := firstMatch(interestedKeywords, body, subject); ok {
		return keywordResult(domain.Interested, 0.7, kw), nil
	}
	if kw, ok := firstMatch(maybeKeywords, body, subject); ok {
		return keywordResult(domain.MaybeInterested, 0.6, kw), nil
	}

	return domain.ClassificationResult{
		Classification: domain.MaybeInterested,
		Confidence:     0.5,
		Reasoning:      "no clear interest signals detected",
	}, nil
}

func firstMatch(keywords []string, body, subject string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(body, kw) || strings.Contains(subject, kw) {
			return kw, true
		}
	}
	return "", false
}

func keywordResult(c domain.Classification, confidence float64, keyword string) domain.ClassificationResult {
	return domain.ClassificationResult{
		Classification: c,
		Confidence:     confidence,
		Reasoning:      fmt.Sprintf("rule-based classification on keyword %q", keyword),
		Keywords:       []string{keyword},
	}
}

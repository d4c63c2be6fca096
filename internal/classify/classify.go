// Package classify turns reply text into an interest classification. The
// primary implementation calls Gemini; a keyword heuristic serves as the
// always-available fallback when the model is unreachable or unconfigured.
package classify

import (
	"context"

	"replyflow_backend/internal/engagement/domain"
)

// Classifier produces a classification for a reply, given the rendered
// conversation context of its thread.
type Classifier interface {
	Classify(ctx context.Context, msg domain.InboundMessage, threadContext string) (domain.ClassificationResult, error)
}

// WithFallback chains a primary classifier with a fallback. The fallback
// result is marked so downstream scoring can tell the two apart.
type WithFallback struct {
	Primary  Classifier
	Fallback Classifier
}

func (w WithFallback) Classify(ctx context.Context, msg domain.InboundMessage, threadContext string) (domain.ClassificationResult, error) {
	if w.Primary != nil {
		res, err := w.Primary.Classify(ctx, msg, threadContext)
		if err == nil {
			return res, nil
		}
	}
	res, err := w.Fallback.Classify(ctx, msg, threadContext)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	res.Fallback = true
	return res, nil
}

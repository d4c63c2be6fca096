// Package domain provides core business rules and value types for the
// engagement bounded context.
package domain

// Classification is the closed set of reply intent categories.
type Classification string

const (
	NotInterested   Classification = "not_interested"
	MaybeInterested Classification = "maybe_interested"
	Interested      Classification = "interested"
)

var knownClassifications = map[Classification]struct{}{
	NotInterested:   {},
	MaybeInterested: {},
	Interested:      {},
}

// IsValid reports whether c is one of the three known categories.
func (c Classification) IsValid() bool {
	_, ok := knownClassifications[c]
	return ok
}

func (c Classification) String() string {
	return string(c)
}

// ParseClassification maps free-form collaborator output onto the closed
// category set. Unknown values default to MaybeInterested so a misbehaving
// classifier degrades to the cautious middle category rather than failing.
func ParseClassification(s string) Classification {
	switch normalizeLabel(s) {
	case "not_interested", "notinterested":
		return NotInterested
	case "interested":
		return Interested
	case "maybe_interested", "maybeinterested", "maybe":
		return MaybeInterested
	default:
		return MaybeInterested
	}
}

func normalizeLabel(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		case r == ' ' || r == '-':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// ClassificationResult is the outcome of one classification pass, whether
// produced by the AI collaborator or the heuristic fallback.
type ClassificationResult struct {
	Classification Classification
	Confidence     float64 // [0,1]
	Reasoning      string
	Keywords       []string
	SentimentScore *float64 // [-1,1], optional
	Fallback       bool     // true when the heuristic fallback produced this
}

// Package threads correlates raw inbound messages into logical conversation
// threads, filters duplicates and automated noise, and renders bounded
// conversational context for the classification collaborator.
package threads

import (
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// ConversationThread is a correlated group of inbound messages believed to be
// one ongoing conversation. Owned exclusively by the Store; callers receive
// copies.
type ConversationThread struct {
	ThreadKey    string
	Subject      string // normalized subject of the first message
	Participants []string
	Messages     []domain.InboundMessage // ordered by ReceivedAt
	FirstAt      time.Time
	LastAt       time.Time

	// IsCampaignThread marks a thread believed to originate from a tracked
	// campaign. A bias for downstream attribution, not authoritative.
	IsCampaignThread bool
}

// MessageCount returns the number of correlated messages.
func (t ConversationThread) MessageCount() int {
	return len(t.Messages)
}

// HasMessageID reports whether the thread contains a message with the given
// transport message ID.
func (t ConversationThread) HasMessageID(messageID string) bool {
	for _, m := range t.Messages {
		if m.MessageID == messageID {
			return true
		}
	}
	return false
}

func (t ConversationThread) clone() ConversationThread {
	out := t
	out.Participants = append([]string(nil), t.Participants...)
	out.Messages = append([]domain.InboundMessage(nil), t.Messages...)
	return out
}

package threads

import (
	"fmt"
	"strings"
)

const (
	// contextMaxMessages bounds how many prior messages go into a digest.
	contextMaxMessages = 5
	// contextBodyBudget is the per-message body truncation budget, in runes.
	contextBodyBudget = 300
)

// RenderContext produces a bounded, most-recent-first textual digest of the
// thread for the classification collaborator. The message with
// excludeMessageID (the one being classified) is left out. Pure function; no
// side effects.
func RenderContext(t ConversationThread, excludeMessageID string) string {
	var prior []int
	for i := len(t.Messages) - 1; i >= 0 && len(prior) < contextMaxMessages; i-- {
		if t.Messages[i].MessageID == excludeMessageID {
			continue
		}
		prior = append(prior, i)
	}
	if len(prior) == 0 {
		return ""
	}

	var b strings.Builder
	for n, i := range prior {
		msg := t.Messages[i]
		body := msg.Body
		if runes := []rune(body); len(runes) > contextBodyBudget {
			body = string(runes[:contextBodyBudget]) + "..."
		}
		fmt.Fprintf(&b, "Email %d (%s):\nFrom: %s\nSubject: %s\nBody: %s\n",
			n+1,
			msg.ReceivedAt.Format("2006-01-02 15:04"),
			msg.Sender,
			msg.Subject,
			body,
		)
		if n < len(prior)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

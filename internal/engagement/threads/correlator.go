package threads

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

// minBodyLength is the threshold below which a reply is treated as automated
// noise rather than a genuine response.
const minBodyLength = 20

var subjectPrefixRe = regexp.MustCompile(`(?i)^(re:|fwd:|fw:)\s*`)

var autoReplyIndicators = []string{
	"auto-reply", "automatic reply", "out of office", "out-of-office",
	"vacation reply", "away message", "automated response",
	"delivery failure", "undelivered mail", "mail delivery failed",
	"bounce", "mailer-daemon", "postmaster", "no-reply", "noreply",
	"do not reply", "this is an automated", "automatically generated",
}

var automatedSenderPatterns = []string{
	"mailer-daemon", "postmaster", "no-reply", "noreply",
	"automated", "system", "admin",
}

var campaignIndicatorKeyword = "unsubscribe"

// Correlator groups inbound messages into conversation threads over a Store.
type Correlator struct {
	store *Store
	log   *logger.Logger
}

// NewCorrelator creates a correlator bound to the given store.
func NewCorrelator(store *Store, log *logger.Logger) *Correlator {
	return &Correlator{store: store, log: log}
}

// Correlate assigns the message to a thread, creating one when no existing
// thread matches. Returns apperr.KindRejected for duplicates and automated
// replies; rejection is filtering, not failure.
func (c *Correlator) Correlate(msg domain.InboundMessage) (ConversationThread, bool, error) {
	if IsAutomatedReply(msg) {
		c.log.Debug("automated reply rejected", "message_id", msg.MessageID, "sender", msg.Sender)
		return ConversationThread{}, false, apperr.Rejected("automated reply").WithOp("threads.Correlate")
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	// Dedup check and append happen under the same lock; two concurrent
	// deliveries of the same message id must not both pass.
	if _, seen := c.store.processed[msg.MessageID]; seen {
		c.log.Debug("duplicate message rejected", "message_id", msg.MessageID)
		return ConversationThread{}, false, apperr.Rejected("duplicate message").WithOp("threads.Correlate")
	}

	key := c.deriveThreadKey(msg)

	t, exists := c.store.threads[key]
	if !exists {
		t = &ConversationThread{
			ThreadKey:        key,
			Subject:          NormalizeSubject(msg.Subject),
			Participants:     uniqueAddresses(msg.Sender, msg.Recipient),
			Messages:         []domain.InboundMessage{msg},
			FirstAt:          msg.ReceivedAt,
			LastAt:           msg.ReceivedAt,
			IsCampaignThread: isCampaignMessage(msg),
		}
		c.store.threads[key] = t
	} else {
		t.Messages = append(t.Messages, msg)
		sort.SliceStable(t.Messages, func(i, j int) bool {
			return t.Messages[i].ReceivedAt.Before(t.Messages[j].ReceivedAt)
		})
		if msg.ReceivedAt.After(t.LastAt) {
			t.LastAt = msg.ReceivedAt
		}
		if !containsAddress(t.Participants, msg.Sender) {
			t.Participants = append(t.Participants, msg.Sender)
		}
	}

	c.store.processed[msg.MessageID] = struct{}{}

	return t.clone(), !exists, nil
}

// deriveThreadKey prefers explicit reply-reference correlation; otherwise it
// hashes the normalized subject with the sender domain. Two unrelated
// conversations with identical normalized subjects from the same domain
// collide on purpose; the heuristic trades precision for not needing any
// server-side state. Caller must hold the store lock.
func (c *Correlator) deriveThreadKey(msg domain.InboundMessage) string {
	if msg.InReplyTo != "" {
		for key, t := range c.store.threads {
			if t.HasMessageID(msg.InReplyTo) {
				return key
			}
		}
	}

	normalized := NormalizeSubject(msg.Subject)
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%s_%x", msg.SenderDomain(), h.Sum64())
}

// NormalizeSubject strips reply/forward prefixes, collapses whitespace, and
// case-folds the subject for thread grouping.
func NormalizeSubject(subject string) string {
	normalized := subject
	for {
		stripped := subjectPrefixRe.ReplaceAllString(normalized, "")
		if stripped == normalized {
			break
		}
		normalized = stripped
	}
	normalized = strings.Join(strings.Fields(normalized), " ")
	return strings.ToLower(strings.TrimSpace(normalized))
}

// IsAutomatedReply detects auto-replies, bounces, and noise by a fixed
// vocabulary, sender-local-part patterns, and a minimum body length.
func IsAutomatedReply(msg domain.InboundMessage) bool {
	subject := strings.ToLower(msg.Subject)
	body := strings.ToLower(msg.Body)

	for _, indicator := range autoReplyIndicators {
		if strings.Contains(subject, indicator) || strings.Contains(body, indicator) {
			return true
		}
	}

	if len(strings.TrimSpace(msg.Body)) < minBodyLength {
		return true
	}

	local := strings.ToLower(msg.SenderLocalPart())
	for _, pattern := range automatedSenderPatterns {
		if strings.Contains(local, pattern) {
			return true
		}
	}

	return false
}

// isCampaignMessage guesses whether the message answers a tracked campaign:
// reply-correlation headers, a reply-style subject, or unsubscribe semantics.
func isCampaignMessage(msg domain.InboundMessage) bool {
	if msg.HasReferences() {
		return true
	}
	if subjectPrefixRe.MatchString(msg.Subject) {
		return true
	}
	return strings.Contains(strings.ToLower(msg.Body), campaignIndicatorKeyword)
}

func uniqueAddresses(addrs ...string) []string {
	var out []string
	for _, a := range addrs {
		if a != "" && !containsAddress(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func containsAddress(addrs []string, addr string) bool {
	for _, a := range addrs {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

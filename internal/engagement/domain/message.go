package domain

import "time"

// InboundMessage is one received email reply. Immutable once produced by the
// mail transport.
type InboundMessage struct {
	MessageID  string
	Subject    string
	Sender     string
	Recipient  string
	Body       string
	ReceivedAt time.Time

	// Correlation hints. Either may be empty; a message without them
	// degrades to the new-thread path.
	InReplyTo  string
	References string
}

// SenderDomain returns the part of the sender address after '@', or the whole
// address when it carries no '@'.
func (m InboundMessage) SenderDomain() string {
	for i := 0; i < len(m.Sender); i++ {
		if m.Sender[i] == '@' {
			return m.Sender[i+1:]
		}
	}
	return m.Sender
}

// SenderLocalPart returns the part of the sender address before '@'.
func (m InboundMessage) SenderLocalPart() string {
	for i := 0; i < len(m.Sender); i++ {
		if m.Sender[i] == '@' {
			return m.Sender[:i]
		}
	}
	return m.Sender
}

// HasReferences reports whether the message carries any reply-correlation
// headers.
func (m InboundMessage) HasReferences() bool {
	return m.InReplyTo != "" || m.References != ""
}

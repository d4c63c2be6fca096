// Package mailbox pulls inbound reply messages from an IMAP mailbox and
// normalizes them for the engagement pipeline.
package mailbox

import (
	"context"

	"replyflow_backend/internal/engagement/domain"
)

// Source yields new inbound messages. The IMAP fetcher is the production
// implementation; tests inject a static source.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]domain.InboundMessage, error)
}

// StaticSource serves a fixed message list once. Subsequent fetches return
// nothing, mimicking an emptied mailbox.
type StaticSource struct {
	messages []domain.InboundMessage
	drained  bool
}

func NewStaticSource(messages ...domain.InboundMessage) *StaticSource {
	return &StaticSource{messages: messages}
}

func (s *StaticSource) Fetch(_ context.Context, limit int) ([]domain.InboundMessage, error) {
	if s.drained {
		return nil, nil
	}
	s.drained = true
	if limit > 0 && limit < len(s.messages) {
		return s.messages[:limit], nil
	}
	return s.messages, nil
}

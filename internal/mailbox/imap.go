package mailbox

import (
	"context"
	"sort"
	"strings"

	imap "github.com/BrianLeishman/go-imap"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

// IMAPConfig holds mailbox connection settings.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
}

// IMAPFetcher pulls unseen messages over IMAP. Each Fetch opens a fresh
// connection; reply volume is low enough that connection reuse is not worth
// the reconnect handling it would need.
type IMAPFetcher struct {
	cfg IMAPConfig
	log *logger.Logger
}

func NewIMAPFetcher(cfg IMAPConfig, log *logger.Logger) *IMAPFetcher {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &IMAPFetcher{cfg: cfg, log: log}
}

// Fetch retrieves up to limit unseen messages and marks them seen so the
// next poll starts past them. Messages that cannot be normalized are logged
// and skipped, not returned as errors.
func (f *IMAPFetcher) Fetch(ctx context.Context, limit int) ([]domain.InboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialer, err := imap.New(f.cfg.Username, f.cfg.Password, f.cfg.Host, f.cfg.Port)
	if err != nil {
		f.log.MailboxError("connect", err)
		return nil, apperr.Wrap(apperr.KindUnavailable, "connecting to imap server", err).WithOp("mailbox.Fetch")
	}
	defer dialer.Close()

	if err := dialer.SelectFolder(f.cfg.Folder); err != nil {
		f.log.MailboxError("select_folder", err)
		return nil, apperr.Wrap(apperr.KindUnavailable, "selecting folder", err).WithOp("mailbox.Fetch")
	}

	uids, err := dialer.GetUIDs("UNSEEN")
	if err != nil {
		f.log.MailboxError("search", err)
		return nil, apperr.Wrap(apperr.KindUnavailable, "searching unseen messages", err).WithOp("mailbox.Fetch")
	}
	if len(uids) == 0 {
		return nil, nil
	}

	sort.Ints(uids)
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	emails, err := dialer.GetEmails(uids...)
	if err != nil {
		f.log.MailboxError("fetch", err)
		return nil, apperr.Wrap(apperr.KindUnavailable, "fetching messages", err).WithOp("mailbox.Fetch")
	}

	messages := make([]domain.InboundMessage, 0, len(emails))
	for _, uid := range uids {
		email, ok := emails[uid]
		if !ok || email == nil {
			continue
		}
		msg, ok := f.normalize(email)
		if !ok {
			f.log.Warn("skipping message without usable envelope", "uid", uid)
			continue
		}
		messages = append(messages, msg)

		if err := dialer.MarkSeen(uid); err != nil {
			f.log.MailboxError("mark_seen", err)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	return messages, nil
}

// normalize maps an IMAP envelope to the pipeline's message shape. The IMAP
// library does not surface In-Reply-To or References headers, so thread
// correlation for fetched mail falls back to the subject and sender domain
// key.
func (f *IMAPFetcher) normalize(email *imap.Email) (domain.InboundMessage, bool) {
	sender := firstAddress(email.From)
	if sender == "" || email.MessageID == "" {
		return domain.InboundMessage{}, false
	}

	body := strings.TrimSpace(email.Text)
	if body == "" {
		body = strings.TrimSpace(email.HTML)
	}

	return domain.InboundMessage{
		MessageID:  email.MessageID,
		Subject:    email.Subject,
		Sender:     sender,
		Recipient:  firstAddress(email.To),
		Body:       body,
		ReceivedAt: email.Received,
	}, true
}

func firstAddress(addrs imap.EmailAddresses) string {
	keys := make([]string, 0, len(addrs))
	for addr := range addrs {
		keys = append(keys, addr)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

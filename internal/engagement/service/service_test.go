package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"replyflow_backend/internal/classify"
	"replyflow_backend/internal/crm"
	"replyflow_backend/internal/email"
	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
}

func (r *recordingSender) Send(_ context.Context, to, subject, html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMail{To: to, Subject: subject, Body: html})
	return nil
}

func (r *recordingSender) all() []sentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMail(nil), r.sent...)
}

type pipeline struct {
	svc      *Service
	crm      *crm.MemoryStore
	threads  *threads.Store
	seqStore *sequences.Store
	seqSvc   *sequences.Service
	mail     *recordingSender
}

func newTestPipeline(t *testing.T) *pipeline {
	t.Helper()
	return newPipelineWithClassifier(t, classify.WithFallback{Fallback: classify.NewHeuristic()})
}

func newPipelineWithClassifier(t *testing.T, classifier classify.Classifier) *pipeline {
	t.Helper()
	log := logger.New("test")

	threadStore := threads.NewStore()
	correlator := threads.NewCorrelator(threadStore, log)
	crmStore := crm.NewMemoryStore()
	seqStore := sequences.NewStore()
	seqSvc := sequences.NewService(seqStore, nil, crmResolver{crmStore}, nil, log)
	mail := &recordingSender{}

	svc := New(threadStore, correlator, classifier,
		crmStore, seqSvc, nil, email.NewResponder(mail, log), nil, log, 0)

	return &pipeline{svc: svc, crm: crmStore, threads: threadStore, seqStore: seqStore, seqSvc: seqSvc, mail: mail}
}

type crmResolver struct {
	store *crm.MemoryStore
}

func (r crmResolver) ContactByID(ctx context.Context, contactID string) (domain.Contact, error) {
	return r.store.ContactByID(ctx, contactID)
}

func inbound(id, sender, subject, body string, at time.Time) domain.InboundMessage {
	return domain.InboundMessage{
		MessageID:  id,
		Sender:     sender,
		Recipient:  "sales@replyflow.io",
		Subject:    subject,
		Body:       body,
		ReceivedAt: at,
	}
}

func TestProcessMessage_UnknownSenderClassifiedWithoutScoring(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<u1@x>", "stranger@nowhere.com", "Re: Your note", "Send me your pricing details when you get a chance.", now))

	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Classification != domain.Interested {
		t.Fatalf("expected interested classification, got %s", result.Classification)
	}
	if result.ContactID != "" || result.ScoreDelta != nil {
		t.Fatalf("unknown sender must not be scored: %+v", result)
	}
}

func TestProcessMessage_DuplicateSkipped(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	msg := inbound("<d1@x>", "alice@acme.com", "Re: Checking in", "Thanks for the note, we are taking a look this week.", now)

	first := p.svc.ProcessMessage(context.Background(), msg)
	if first.Skipped {
		t.Fatalf("first pass skipped: %s", first.SkipReason)
	}

	second := p.svc.ProcessMessage(context.Background(), msg)
	if !second.Skipped {
		t.Fatal("duplicate message must be skipped")
	}

	stats := p.svc.Stats()
	if stats.Processed != 2 || stats.Filtered != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
}

func TestProcessMessage_InterestedPricingFlow(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	contact := p.crm.SeedContact(domain.Contact{Email: "ada@acme.com", FirstName: "Ada", LastName: "Lovelace", Company: "Acme Corp"})
	p.crm.SeedMembership(contact.ID, domain.CampaignMembership{
		Campaign: domain.Campaign{ID: "c1", Name: "Spring Product Launch", CreatedAt: now.AddDate(0, 0, -3)},
		AddedAt:  now.AddDate(0, 0, -3),
	})

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<p1@x>", "ada@acme.com", "Re: Spring Product Launch", "What is the pricing for your platform?", now))

	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Classification != domain.Interested {
		t.Fatalf("expected interested classification, got %s", result.Classification)
	}
	if result.ContactID != contact.ID {
		t.Fatalf("contact not resolved: %+v", result)
	}

	// 15 base * 2.0 pricing * 1.4 question = 42.
	if result.ScoreDelta == nil || result.ScoreDelta.FinalDelta != 42 {
		t.Fatalf("unexpected score delta: %+v", result.ScoreDelta)
	}
	if result.NewScore != 42 {
		t.Fatalf("expected new score 42, got %d", result.NewScore)
	}

	if result.Attribution == nil || result.Attribution.CampaignID != "c1" {
		t.Fatalf("expected attribution to the seeded campaign, got %+v", result.Attribution)
	}

	if result.Opportunity == nil || !result.Opportunity.ShouldCreate {
		t.Fatalf("expected an opportunity decision, got %+v", result.Opportunity)
	}
	if result.Opportunity.RecommendedStage != "Proposal/Price Quote" {
		t.Fatalf("unexpected stage %q", result.Opportunity.RecommendedStage)
	}
	hasOpen, _ := p.crm.HasOpenOpportunity(context.Background(), contact.ID)
	if !hasOpen {
		t.Fatal("opportunity was not created in the crm")
	}

	if result.SequenceType != domain.SequencePricingFollowUp || result.SequenceID == "" {
		t.Fatalf("expected pricing follow-up enrollment, got %+v", result)
	}
	holding, ok := p.seqStore.HoldingForContact(contact.ID)
	if !ok || holding.Type != domain.SequencePricingFollowUp {
		t.Fatalf("enrollment missing from store: %+v", holding)
	}

	// Membership status and activity timeline updated.
	memberships, _ := p.crm.CampaignMemberships(context.Background(), contact.ID)
	if memberships[0].Status != "Responded - interested" {
		t.Fatalf("membership status not updated: %q", memberships[0].Status)
	}
	if timeline := p.crm.Activities(contact.ID); len(timeline) != 1 {
		t.Fatalf("expected 1 logged activity, got %d", len(timeline))
	}
}

func TestProcessMessage_AcknowledgmentSentToSender(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	p.crm.SeedContact(domain.Contact{Email: "ada@acme.com", FirstName: "Ada", LastName: "Lovelace", Company: "Acme Corp"})

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<ack1@x>", "ada@acme.com", "Re: Spring Product Launch", "What is the pricing for your platform?", now))

	if !result.ResponseSent {
		t.Fatalf("expected an acknowledgment for an interested reply: %+v", result)
	}

	sent := p.mail.all()
	if len(sent) != 1 {
		t.Fatalf("expected 1 outbound mail, got %d", len(sent))
	}
	if sent[0].To != "ada@acme.com" {
		t.Fatalf("acknowledgment went to %q", sent[0].To)
	}
	if sent[0].Subject != "Re: Spring Product Launch" {
		t.Fatalf("expected threaded subject, got %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Body, "Hi Ada,") {
		t.Fatalf("acknowledgment not personalized:\n%s", sent[0].Body)
	}
	if !strings.Contains(sent[0].Body, "pricing information tailored to your needs") {
		t.Fatalf("pricing mention not reflected in acknowledgment:\n%s", sent[0].Body)
	}

	if stats := p.svc.Stats(); stats.ResponsesSent != 1 {
		t.Fatalf("responses-sent counter not incremented: %+v", stats)
	}
}

func TestProcessMessage_InterestedAlertCountsNotifications(t *testing.T) {
	log := logger.New("test")
	threadStore := threads.NewStore()
	correlator := threads.NewCorrelator(threadStore, log)
	crmStore := crm.NewMemoryStore()
	seqStore := sequences.NewStore()
	seqSvc := sequences.NewService(seqStore, nil, crmResolver{crmStore}, nil, log)
	mail := &recordingSender{}
	notifier := email.NewNotifier(mail, []string{"sales@replyflow.io"}, log)

	svc := New(threadStore, correlator, classify.WithFallback{Fallback: classify.NewHeuristic()},
		crmStore, seqSvc, notifier, nil, nil, log, 0)

	crmStore.SeedContact(domain.Contact{Email: "ada@acme.com", FirstName: "Ada", LastName: "Lovelace"})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	svc.ProcessMessage(context.Background(),
		inbound("<n1@x>", "ada@acme.com", "Re: Spring Product Launch", "What is the pricing for your platform?", now))

	if stats := svc.Stats(); stats.NotificationsSent != 1 {
		t.Fatalf("expected notification counter 1, got %+v", stats)
	}
	sent := mail.all()
	if len(sent) != 1 || sent[0].To != "sales@replyflow.io" {
		t.Fatalf("unexpected alert deliveries: %+v", sent)
	}
}

func TestProcessMessage_UnsubscribeSuppressesSequences(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	contact := p.crm.SeedContact(domain.Contact{Email: "bob@globex.com", FirstName: "Bob", LeadScore: 40})

	// Bob is mid-sequence when the opt-out arrives.
	if _, err := p.seqSvc.Enroll(context.Background(), contact, domain.SequenceMaybeInterestedNurture, now.AddDate(0, 0, -5)); err != nil {
		t.Fatalf("pre-enrollment failed: %v", err)
	}

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<o1@x>", "bob@globex.com", "Re: Following up", "Please unsubscribe me from these emails, not interested.", now))

	if result.Skipped {
		t.Fatalf("unexpected skip: %s", result.SkipReason)
	}
	if result.Classification != domain.NotInterested {
		t.Fatalf("expected not interested, got %s", result.Classification)
	}
	if result.SequenceID != "" {
		t.Fatal("opted-out contact must not be enrolled")
	}

	if !p.seqStore.OptedOut(contact.ID) {
		t.Fatal("opt-out not recorded")
	}
	if _, stillHolding := p.seqStore.HoldingForContact(contact.ID); stillHolding {
		t.Fatal("existing sequence should be paused on opt-out")
	}

	// -10 base * 1.0 - 25 unsubscribe = -35 onto a score of 40.
	if result.NewScore != 5 {
		t.Fatalf("expected score 5, got %d", result.NewScore)
	}

	// Opt-outs get no acknowledgment mail.
	if sent := p.mail.all(); len(sent) != 0 {
		t.Fatalf("expected no outbound mail for a not-interested reply, got %d", len(sent))
	}
}

func TestProcessMessage_AutomatedReplyFiltered(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<a1@x>", "alice@acme.com", "Automatic reply: Out of Office", "I am away until next month with limited email access.", now))

	if !result.Skipped {
		t.Fatal("automated reply must be skipped")
	}
	if p.svc.Stats().Filtered != 1 {
		t.Fatalf("filter counter not incremented: %+v", p.svc.Stats())
	}
}

func TestProcessBatch_ResultsAlignWithInput(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	msgs := []domain.InboundMessage{
		inbound("<b1@x>", "one@acme.com", "Re: Alpha", "Interested, could we discuss on a call sometime?", now),
		inbound("<b2@x>", "two@globex.com", "Re: Beta", "Maybe later in the year, we are busy right now.", now),
		inbound("<b3@x>", "noreply@initech.com", "System notice", "This is an automated message from the ticketing system.", now),
	}

	results := p.svc.ProcessBatch(context.Background(), msgs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.MessageID != msgs[i].MessageID {
			t.Fatalf("result %d out of order: %s", i, r.MessageID)
		}
	}
	if results[0].Skipped || results[1].Skipped {
		t.Fatal("genuine replies must not be skipped")
	}
	if !results[2].Skipped {
		t.Fatal("automated reply must be skipped")
	}
}

func TestApplyFeedback_RevisesScore(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	contact := p.crm.SeedContact(domain.Contact{Email: "carol@acme.com", FirstName: "Carol"})

	// A neutral body: heuristic says maybe (base 5), no factors.
	result := p.svc.ProcessMessage(ctx,
		inbound("<f1@x>", "carol@acme.com", "Re: Intro", "We will evaluate internally and revert in due time.", now))
	if result.Classification != domain.MaybeInterested || result.NewScore != 5 {
		t.Fatalf("unexpected baseline result: %+v", result)
	}

	newScore, err := p.svc.ApplyFeedback(ctx, "<f1@x>", domain.Interested)
	if err != nil {
		t.Fatalf("feedback failed: %v", err)
	}
	// Revised delta 15 replaces the original 5: 5 + (15 - 5) = 15.
	if newScore != 15 {
		t.Fatalf("expected revised score 15, got %d", newScore)
	}
	stored, _ := p.crm.ContactByID(ctx, contact.ID)
	if stored.LeadScore != 15 {
		t.Fatalf("crm score %d, want 15", stored.LeadScore)
	}

	// Same correction twice conflicts.
	if _, err := p.svc.ApplyFeedback(ctx, "<f1@x>", domain.Interested); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on unchanged classification, got %v", err)
	}
}

func TestApplyFeedback_Validation(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.svc.ApplyFeedback(ctx, "<missing@x>", domain.Interested); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := p.svc.ApplyFeedback(ctx, "<missing@x>", domain.Classification("bogus")); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type downClassifier struct{}

func (downClassifier) Classify(context.Context, domain.InboundMessage, string) (domain.ClassificationResult, error) {
	return domain.ClassificationResult{}, apperr.Unavailable("classifier offline")
}

func TestStats_ErrorsAndProcessingTime(t *testing.T) {
	p := newPipelineWithClassifier(t, downClassifier{})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result := p.svc.ProcessMessage(context.Background(),
		inbound("<e1@x>", "alice@acme.com", "Re: Checking in", "Thanks for the note, we are taking a look this week.", now))
	if result.SkipReason != "classification unavailable" {
		t.Fatalf("expected degraded result, got %+v", result)
	}

	stats := p.svc.Stats()
	if stats.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", stats.Errors)
	}
	if stats.LastProcessedAt.IsZero() {
		t.Fatal("last-processed timestamp not recorded")
	}
	if stats.AvgProcessingMs < 0 {
		t.Fatalf("negative average processing time: %f", stats.AvgProcessingMs)
	}
}

func TestStats_AverageFoldsEveryRun(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	before := time.Now()
	p.svc.ProcessMessage(ctx, inbound("<t1@x>", "one@acme.com", "Re: Alpha", "Interested, could we discuss on a call sometime?", now))
	p.svc.ProcessMessage(ctx, inbound("<t2@x>", "two@globex.com", "Re: Beta", "Maybe later in the year, we are busy right now.", now))

	stats := p.svc.Stats()
	if stats.LastProcessedAt.Before(before) {
		t.Fatalf("last-processed %v predates the run start %v", stats.LastProcessedAt, before)
	}
}

func TestDailySummaryCounters(t *testing.T) {
	p := newTestPipeline(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	p.svc.ProcessMessage(ctx, inbound("<s1@x>", "one@acme.com", "Re: Alpha", "Interested, send pricing information please.", now))
	p.svc.ProcessMessage(ctx, inbound("<s2@x>", "noreply@initech.com", "System notice", "This is an automated message from the ticketing system.", now))
	p.svc.NoteStepsSent(3)

	summary := p.svc.DailySummary(now)
	if summary.Processed != 2 || summary.AutomatedFiltered != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Interested != 1 {
		t.Fatalf("expected 1 interested, got %d", summary.Interested)
	}
	if summary.StepsSent != 3 {
		t.Fatalf("expected 3 steps sent, got %d", summary.StepsSent)
	}
	// The interested reply came from an unknown sender, so no contact was
	// resolved and no acknowledgment went out.
	if summary.ResponsesSent != 0 {
		t.Fatalf("expected 0 acknowledgments, got %d", summary.ResponsesSent)
	}
	// The heuristic ran behind the fallback chain.
	if summary.FallbackUsed != 1 {
		t.Fatalf("expected 1 fallback classification, got %d", summary.FallbackUsed)
	}
}

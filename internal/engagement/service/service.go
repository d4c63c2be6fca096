// Package service orchestrates the reply engagement pipeline: correlate the
// inbound message into a thread, classify it, attribute and score it against
// the contact's campaigns, and react with opportunities, notifications, and
// follow-up sequences.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"replyflow_backend/internal/classify"
	"replyflow_backend/internal/crm"
	"replyflow_backend/internal/email"
	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/engagement/scoring"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/internal/events"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

const batchConcurrency = 4

// Result is the outcome of processing one inbound message.
type Result struct {
	MessageID      string                      `json:"messageId"`
	Skipped        bool                        `json:"skipped"`
	SkipReason     string                      `json:"skipReason,omitempty"`
	ThreadKey      string                      `json:"threadKey,omitempty"`
	NewThread      bool                        `json:"newThread"`
	Classification domain.Classification       `json:"classification,omitempty"`
	Confidence     float64                     `json:"confidence,omitempty"`
	Fallback       bool                        `json:"fallback,omitempty"`
	ContactID      string                      `json:"contactId,omitempty"`
	ScoreDelta     *domain.ScoreDelta          `json:"scoreDelta,omitempty"`
	NewScore       int                         `json:"newScore,omitempty"`
	Attribution    *domain.CampaignAttribution `json:"attribution,omitempty"`
	Opportunity    *domain.OpportunityDecision `json:"opportunity,omitempty"`
	SequenceType   domain.SequenceType         `json:"sequenceType,omitempty"`
	SequenceID     string                      `json:"sequenceId,omitempty"`
	ResponseSent   bool                        `json:"responseSent,omitempty"`
}

// processedRecord remembers enough about an applied score to revise it when
// an operator corrects the classification later.
type processedRecord struct {
	ContactID      string
	Classification domain.Classification
	Delta          int
	Attribution    *domain.CampaignAttribution
	Message        domain.InboundMessage
}

// Service wires the pipeline stages together.
type Service struct {
	threadStore  *threads.Store
	correlator   *threads.Correlator
	classifier   classify.Classifier
	crm          crm.Store
	seqService   *sequences.Service
	notifier     *email.Notifier
	responder    *email.Responder
	bus          events.Bus
	log          *logger.Logger
	oppThreshold int

	senderMu sync.Map // lowercased sender -> *sync.Mutex

	recordMu sync.Mutex
	records  map[string]processedRecord

	stats statsCounters
}

func New(
	threadStore *threads.Store,
	correlator *threads.Correlator,
	classifier classify.Classifier,
	crmStore crm.Store,
	seqService *sequences.Service,
	notifier *email.Notifier,
	responder *email.Responder,
	bus events.Bus,
	log *logger.Logger,
	opportunityThreshold int,
) *Service {
	if opportunityThreshold <= 0 {
		opportunityThreshold = scoring.DefaultOpportunityThreshold
	}
	return &Service{
		threadStore:  threadStore,
		correlator:   correlator,
		classifier:   classifier,
		crm:          crmStore,
		seqService:   seqService,
		notifier:     notifier,
		responder:    responder,
		bus:          bus,
		log:          log,
		oppThreshold: opportunityThreshold,
		records:      make(map[string]processedRecord),
	}
}

// ProcessBatch runs messages through the pipeline with bounded concurrency.
// Messages from the same sender are serialized so score deltas and sequence
// decisions for one contact never race.
func (s *Service) ProcessBatch(ctx context.Context, msgs []domain.InboundMessage) []Result {
	results := make([]Result, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, msg := range msgs {
		g.Go(func() error {
			results[i] = s.ProcessMessage(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ProcessMessage runs one message through the whole pipeline. Pipeline-level
// rejections (duplicates, automated replies) come back as skipped results,
// not errors; errors from collaborators degrade the result rather than
// aborting it where the remaining stages can still run.
func (s *Service) ProcessMessage(ctx context.Context, msg domain.InboundMessage) Result {
	started := time.Now()
	defer func() {
		s.stats.observeProcessing(time.Since(started), time.Now())
	}()

	unlock := s.lockSender(msg.Sender)
	defer unlock()

	log := s.log.WithMessageID(msg.MessageID)
	result := Result{MessageID: msg.MessageID}
	s.stats.incProcessed()

	thread, newThread, err := s.correlator.Correlate(msg)
	if err != nil {
		result.Skipped = true
		result.SkipReason = err.Error()
		if apperr.IsKind(err, apperr.KindRejected) {
			s.stats.incFiltered()
		}
		log.Info("message skipped", "reason", result.SkipReason)
		return result
	}
	result.ThreadKey = thread.ThreadKey
	result.NewThread = newThread

	s.publish(ctx, events.ReplyReceived{
		BaseEvent: events.NewBaseEvent(),
		MessageID: msg.MessageID,
		ThreadKey: thread.ThreadKey,
		Sender:    msg.Sender,
		Subject:   msg.Subject,
		NewThread: newThread,
	})

	threadContext := threads.RenderContext(thread, msg.MessageID)
	classification, err := s.classifier.Classify(ctx, msg, threadContext)
	if err != nil {
		s.stats.incErrors()
		log.Error("classification failed", "error", err)
		result.SkipReason = "classification unavailable"
		return result
	}
	result.Classification = classification.Classification
	result.Confidence = classification.Confidence
	result.Fallback = classification.Fallback
	s.stats.incClassified(classification)

	log.ClassificationEvent(msg.MessageID, classification.Classification.String(), classification.Confidence, classification.Fallback)
	s.publish(ctx, events.ReplyClassified{
		BaseEvent:      events.NewBaseEvent(),
		MessageID:      msg.MessageID,
		ThreadKey:      thread.ThreadKey,
		Classification: classification.Classification.String(),
		Confidence:     classification.Confidence,
		Fallback:       classification.Fallback,
	})

	contact, err := s.crm.FindContactByEmail(ctx, msg.Sender)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			log.Info("sender not in crm, classification recorded without scoring", "sender", msg.Sender)
		} else {
			s.stats.incErrors()
			log.Error("crm lookup failed", "error", err)
		}
		return result
	}
	result.ContactID = contact.ID
	log = log.WithContactID(contact.ID)

	memberships, err := s.crm.CampaignMemberships(ctx, contact.ID)
	if err != nil {
		s.stats.incErrors()
		log.Error("loading campaign memberships failed", "error", err)
	}

	attribution := scoring.Attribute(thread, msg, memberships, msg.ReceivedAt)
	result.Attribution = attribution

	delta := scoring.Score(msg, classification.Classification, attribution)
	result.ScoreDelta = &delta

	newScore, err := s.crm.ApplyScoreDelta(ctx, contact.ID, delta.FinalDelta)
	if err != nil {
		s.stats.incErrors()
		log.Error("applying score delta failed", "error", err)
		newScore = contact.LeadScore
	} else {
		result.NewScore = newScore
		campaignName := ""
		campaignID := ""
		if attribution != nil {
			campaignName = attribution.CampaignName
			campaignID = attribution.CampaignID
		}
		log.ScoreEvent(contact.ID, delta.FinalDelta, campaignName)
		s.publish(ctx, events.LeadScoreApplied{
			BaseEvent:  events.NewBaseEvent(),
			ContactID:  contact.ID,
			MessageID:  msg.MessageID,
			Delta:      delta.FinalDelta,
			NewScore:   newScore,
			CampaignID: campaignID,
		})
	}

	if err := s.crm.UpdateMembershipStatus(ctx, contact.ID, classification.Classification); err != nil {
		s.stats.incErrors()
		log.Error("updating membership status failed", "error", err)
	}

	s.recordProcessed(msg, contact.ID, classification.Classification, delta.FinalDelta, attribution)

	factors := domain.DetectEngagementFactors(msg)
	negatives := domain.DetectNegativeSignals(msg)

	if negatives.UnsubscribeRequest {
		s.handleOptOut(ctx, contact, log)
	}

	s.maybeOpenOpportunity(ctx, contact, classification.Classification, newScore, factors, &result, log)

	if !negatives.UnsubscribeRequest {
		s.maybeEnroll(ctx, contact, msg, classification.Classification, factors, &result, log)
	}

	if s.responder != nil && email.ShouldRespond(classification.Classification) {
		if err := s.responder.Respond(ctx, contact, msg, classification.Classification); err != nil {
			s.stats.incErrors()
			log.Error("sending acknowledgment failed", "error", err)
		} else {
			result.ResponseSent = true
			s.stats.incResponsesSent()
		}
	}

	if classification.Classification == domain.Interested && s.notifier != nil {
		delivered := s.notifier.NotifyInterestedLead(ctx, contact, msg, classification, newScore)
		s.stats.addNotificationsSent(delivered)
	}

	if _, err := s.crm.LogActivity(ctx, crm.Activity{
		ContactID: contact.ID,
		Subject:   "Reply received: " + msg.Subject,
		Body:      "Classified as " + classification.Classification.String() + ". " + classification.Reasoning,
		CreatedAt: msg.ReceivedAt,
	}); err != nil {
		s.stats.incErrors()
		log.Error("logging reply activity failed", "error", err)
	}

	return result
}

func (s *Service) handleOptOut(ctx context.Context, contact domain.Contact, log *logger.Logger) {
	s.seqService.Store().RecordOptOut(contact.ID)
	if held, ok := s.seqService.Store().HoldingForContact(contact.ID); ok {
		if err := s.seqService.Pause(held.ID, "unsubscribed"); err != nil {
			s.stats.incErrors()
			log.Error("pausing sequence after opt-out failed", "sequence_id", held.ID, "error", err)
		}
	}
	log.Info("contact opted out, sequences suppressed")
	_ = ctx
}

func (s *Service) maybeOpenOpportunity(ctx context.Context, contact domain.Contact, classification domain.Classification, currentScore int, factors domain.EngagementFactors, result *Result, log *logger.Logger) {
	hasOpen, err := s.crm.HasOpenOpportunity(ctx, contact.ID)
	if err != nil {
		s.stats.incErrors()
		log.Error("checking open opportunities failed", "error", err)
		return
	}

	decision := scoring.ShouldOpenOpportunity(contact, classification, currentScore, factors, hasOpen, s.oppThreshold)
	result.Opportunity = &decision
	if !decision.ShouldCreate {
		return
	}

	opp := crm.Opportunity{
		ContactID:      contact.ID,
		Name:           contact.FullName() + " - " + decision.RecommendedStage,
		Stage:          decision.RecommendedStage,
		EstimatedValue: float64(decision.EstimatedValue),
	}
	if _, err := s.crm.CreateOpportunity(ctx, opp); err != nil {
		s.stats.incErrors()
		log.Error("creating opportunity failed", "error", err)
		return
	}

	s.stats.incOpportunities()
	log.Info("opportunity created", "stage", decision.RecommendedStage, "estimated_value", decision.EstimatedValue)
	s.publish(ctx, events.OpportunityRecommended{
		BaseEvent:      events.NewBaseEvent(),
		ContactID:      contact.ID,
		Reasons:        decision.Reasons,
		Stage:          decision.RecommendedStage,
		EstimatedValue: float64(decision.EstimatedValue),
	})
}

func (s *Service) maybeEnroll(ctx context.Context, contact domain.Contact, msg domain.InboundMessage, classification domain.Classification, factors domain.EngagementFactors, result *Result, log *logger.Logger) {
	seqType, ok := sequences.DetermineSequenceType(msg, classification, factors)
	if !ok {
		return
	}
	result.SequenceType = seqType

	seq, err := s.seqService.Enroll(ctx, contact, seqType, msg.ReceivedAt)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			log.Info("enrollment skipped, contact keeps current sequence", "requested", seqType.String())
			return
		}
		s.stats.incErrors()
		log.Error("sequence enrollment failed", "error", err)
		return
	}
	result.SequenceID = seq.ID
}

// ApplyFeedback revises the score applied for an earlier message after an
// operator corrects its classification. The revised delta is recomputed with
// the corrected category and the difference applied on top of the original.
func (s *Service) ApplyFeedback(ctx context.Context, messageID string, corrected domain.Classification) (int, error) {
	if !corrected.IsValid() {
		return 0, apperr.Validation("unknown classification").WithOp("service.ApplyFeedback")
	}

	s.recordMu.Lock()
	record, ok := s.records[messageID]
	s.recordMu.Unlock()
	if !ok {
		return 0, apperr.NotFound("no scored message with that id").WithOp("service.ApplyFeedback")
	}
	if record.Classification == corrected {
		return 0, apperr.Conflict("classification unchanged").WithOp("service.ApplyFeedback")
	}

	unlock := s.lockSender(record.Message.Sender)
	defer unlock()

	original := record.Classification
	previousDelta := record.Delta
	revised := scoring.Score(record.Message, corrected, record.Attribution)
	adjustment := revised.FinalDelta - previousDelta

	newScore, err := s.crm.ApplyScoreDelta(ctx, record.ContactID, adjustment)
	if err != nil {
		return 0, err
	}

	s.recordMu.Lock()
	record.Classification = corrected
	record.Delta = revised.FinalDelta
	s.records[messageID] = record
	s.recordMu.Unlock()

	s.log.WithMessageID(messageID).Info("manual feedback applied",
		"corrected", corrected.String(),
		"adjustment", adjustment,
		"new_score", newScore,
	)
	s.publish(ctx, events.ManualFeedbackRecorded{
		BaseEvent:     events.NewBaseEvent(),
		MessageID:     messageID,
		Original:      original.String(),
		Corrected:     corrected.String(),
		PreviousDelta: previousDelta,
		RevisedDelta:  revised.FinalDelta,
	})
	return newScore, nil
}

func (s *Service) recordProcessed(msg domain.InboundMessage, contactID string, classification domain.Classification, delta int, attribution *domain.CampaignAttribution) {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	s.records[msg.MessageID] = processedRecord{
		ContactID:      contactID,
		Classification: classification,
		Delta:          delta,
		Attribution:    attribution,
		Message:        msg,
	}
}

func (s *Service) lockSender(sender string) func() {
	key := strings.ToLower(strings.TrimSpace(sender))
	muIface, _ := s.senderMu.LoadOrStore(key, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

// DailySummary packages the counters for the recap notification.
func (s *Service) DailySummary(now time.Time) email.DailySummary {
	snap := s.stats.snapshot()
	return email.DailySummary{
		Date:              now,
		Processed:         snap.Processed,
		Interested:        snap.Interested,
		MaybeInterested:   snap.MaybeInterested,
		NotInterested:     snap.NotInterested,
		AutomatedFiltered: snap.Filtered,
		StepsSent:         snap.StepsSent,
		ResponsesSent:     snap.ResponsesSent,
		Opportunities:     snap.Opportunities,
		FallbackUsed:      snap.Fallback,
		Errors:            snap.Errors,
	}
}

// Stats returns a point-in-time copy of the pipeline counters.
func (s *Service) Stats() ProcessingStats {
	return s.stats.snapshot()
}

// NoteStepsSent feeds sweep results back into the counters.
func (s *Service) NoteStepsSent(n int) {
	s.stats.addStepsSent(n)
}

// NoteNotificationsSent feeds alert deliveries made outside the message
// pipeline back into the counters.
func (s *Service) NoteNotificationsSent(n int) {
	s.stats.addNotificationsSent(n)
}

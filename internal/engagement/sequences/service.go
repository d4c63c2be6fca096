package sequences

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/internal/events"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

// ActionStatus is the outcome of one sweep decision for one enrollment.
type ActionStatus string

const (
	StatusSent          ActionStatus = "sent"
	StatusSkipped       ActionStatus = "skipped"
	StatusPendingReview ActionStatus = "pending_review"
	StatusCompleted     ActionStatus = "completed"
	StatusSendFailed    ActionStatus = "send_failed"
)

// Action is one emitted scheduling decision. Send failures leave the
// enrollment unchanged so a later sweep retries the same step.
type Action struct {
	SequenceID   string              `json:"sequenceId"`
	ContactID    string              `json:"contactId"`
	SequenceType domain.SequenceType `json:"sequenceType"`
	StepNumber   int                 `json:"stepNumber"`
	Status       ActionStatus        `json:"status"`
	Subject      string              `json:"subject,omitempty"`
	Body         string              `json:"body,omitempty"`
	NextDueAt    time.Time           `json:"nextDueAt,omitzero"`
	Error        string              `json:"error,omitempty"`
}

// StepSender delivers one rendered step to a contact. Implemented by the
// outbound mail collaborator; nil disables delivery (actions are still
// emitted and state advances, useful for dry runs and tests).
type StepSender interface {
	SendStep(ctx context.Context, contact domain.Contact, subject, body string) error
}

// ContactResolver resolves the CRM contact for personalization.
type ContactResolver interface {
	ContactByID(ctx context.Context, contactID string) (domain.Contact, error)
}

// Condition is a gating predicate evaluated before a step is sent.
type Condition func(ctx context.Context, seq ActiveSequence) bool

// Service is the per-contact follow-up state machine. All mutations to one
// contact's enrollment are serialized through a per-contact mutex.
type Service struct {
	store      *Store
	sender     StepSender
	contacts   ContactResolver
	bus        events.Bus
	log        *logger.Logger
	conditions map[string]Condition

	contactMu sync.Map // contactID -> *sync.Mutex
}

// NewService creates the sequence scheduler over the given store. The default
// condition registry is permissive except for no_unsubscribe, which consults
// the store's opt-out set.
func NewService(store *Store, sender StepSender, contacts ContactResolver, bus events.Bus, log *logger.Logger) *Service {
	s := &Service{
		store:      store,
		sender:     sender,
		contacts:   contacts,
		bus:        bus,
		log:        log,
		conditions: make(map[string]Condition),
	}
	s.conditions[CondNoUnsubscribe] = func(_ context.Context, seq ActiveSequence) bool {
		return !store.OptedOut(seq.ContactID)
	}
	return s
}

// RegisterCondition installs or replaces a gating predicate. Conditions with
// no registered predicate evaluate permissively (true).
func (s *Service) RegisterCondition(name string, cond Condition) {
	s.conditions[name] = cond
}

// Store exposes the underlying sequence store (statistics, snapshots).
func (s *Service) Store() *Store {
	return s.store
}

// ResolveContact looks up the CRM contact behind an enrollment. Without a
// resolver only the ID is known.
func (s *Service) ResolveContact(ctx context.Context, contactID string) (domain.Contact, error) {
	if s.contacts == nil {
		return domain.Contact{ID: contactID}, nil
	}
	return s.contacts.ContactByID(ctx, contactID)
}

func (s *Service) lockContact(contactID string) func() {
	muIface, _ := s.contactMu.LoadOrStore(contactID, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// DetermineSequenceType selects a sequence for a classified reply. Explicit
// strong-signal factors override the classification default; demo is checked
// before meeting so "schedule a demo" resolves to the demo follow-up rather
// than the meeting one. An explicit opt-out yields no sequence at all.
func DetermineSequenceType(msg domain.InboundMessage, classification domain.Classification, factors domain.EngagementFactors) (domain.SequenceType, bool) {
	if factors.DemoRequest {
		return domain.SequenceDemoFollowUp, true
	}
	if factors.PricingInquiry {
		return domain.SequencePricingFollowUp, true
	}
	if factors.MeetingRequest {
		return domain.SequenceMeetingFollowUp, true
	}

	switch classification {
	case domain.Interested:
		return domain.SequenceInterestedAcceleration, true
	case domain.MaybeInterested:
		return domain.SequenceMaybeInterestedNurture, true
	case domain.NotInterested:
		if domain.DetectNegativeSignals(msg).UnsubscribeRequest {
			return "", false
		}
		return domain.SequenceNotInterestedNurture, true
	}
	return "", false
}

// Enroll starts a sequence for a contact. When the contact already holds an
// active enrollment, priority tiers decide: a higher-priority type pauses the
// existing sequence with reason "replaced" and takes the slot; otherwise the
// enrollment is rejected and the contact keeps its current sequence.
func (s *Service) Enroll(ctx context.Context, contact domain.Contact, t domain.SequenceType, now time.Time) (ActiveSequence, error) {
	def, ok := DefinitionFor(t)
	if !ok || len(def.Steps) == 0 {
		return ActiveSequence{}, apperr.Validation("unknown sequence type").WithOp("sequences.Enroll")
	}

	unlock := s.lockContact(contact.ID)
	defer unlock()

	var replaced *ActiveSequence
	if existing, held := s.store.HoldingForContact(contact.ID); held {
		if !t.Outranks(existing.Type) {
			return ActiveSequence{}, apperr.Conflict("contact already has an active sequence").WithOp("sequences.Enroll")
		}
		s.pauseLocked(existing.ID, "replaced")
		replaced = &existing
	}

	seq := ActiveSequence{
		ID:          uuid.NewString(),
		ContactID:   contact.ID,
		Type:        t,
		CurrentStep: 0,
		StartedAt:   now,
		NextDueAt:   now.AddDate(0, 0, def.Steps[0].DelayDays),
		State:       StateActive,
	}

	s.store.mu.Lock()
	stored := seq.clone()
	s.store.sequences[seq.ID] = &stored
	s.store.mu.Unlock()

	s.log.SequenceEvent("enrolled", contact.ID, t.String(), 0)
	if s.bus != nil {
		evt := events.SequenceEnrolled{
			BaseEvent:    events.NewBaseEvent(),
			SequenceID:   seq.ID,
			ContactID:    contact.ID,
			SequenceType: t.String(),
			NextDueAt:    seq.NextDueAt,
		}
		if replaced != nil {
			evt.ReplacedType = replaced.Type.String()
		}
		s.bus.Publish(ctx, evt)
	}

	return seq, nil
}

// Pause suspends an enrollment with a reason.
func (s *Service) Pause(id, reason string) error {
	seq, ok := s.store.Get(id)
	if !ok {
		return apperr.NotFound("sequence not found").WithOp("sequences.Pause")
	}
	if seq.State == StateCompleted {
		return apperr.Conflict("sequence already completed").WithOp("sequences.Pause")
	}

	unlock := s.lockContact(seq.ContactID)
	defer unlock()
	s.pauseLocked(id, reason)
	s.log.SequenceEvent("paused", seq.ContactID, seq.Type.String(), seq.CurrentStep)
	return nil
}

func (s *Service) pauseLocked(id, reason string) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if seq, ok := s.store.sequences[id]; ok && seq.State != StateCompleted {
		seq.State = StatePaused
		seq.PauseReason = reason
	}
}

// Resume re-activates a paused enrollment at the step it left off, with the
// due time recomputed from that step's delay. Resuming fails when the contact
// has since acquired another active sequence.
func (s *Service) Resume(id string, now time.Time) error {
	seq, ok := s.store.Get(id)
	if !ok {
		return apperr.NotFound("sequence not found").WithOp("sequences.Resume")
	}
	if seq.State != StatePaused {
		return apperr.Conflict("sequence is not paused").WithOp("sequences.Resume")
	}

	unlock := s.lockContact(seq.ContactID)
	defer unlock()

	if _, held := s.store.HoldingForContact(seq.ContactID); held {
		return apperr.Conflict("contact already has an active sequence").WithOp("sequences.Resume")
	}

	def, _ := DefinitionFor(seq.Type)
	if seq.CurrentStep >= len(def.Steps) {
		return apperr.Conflict("sequence has no remaining steps").WithOp("sequences.Resume")
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	stored := s.store.sequences[id]
	stored.State = StateActive
	stored.PauseReason = ""
	stored.NextDueAt = now.AddDate(0, 0, def.Steps[stored.CurrentStep].DelayDays)
	s.log.SequenceEvent("resumed", stored.ContactID, stored.Type.String(), stored.CurrentStep)
	return nil
}

// ProcessDue advances every active enrollment whose due time has elapsed.
// Deterministic: the sweep order is fixed (contact ID, then enrollment ID)
// and the same store state with the same now yields the same actions.
// Replaying a sweep for steps already advanced past is a no-op because the
// recomputed due times lie in the future.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) []Action {
	var actions []Action
	for _, snapshot := range s.store.all() {
		if snapshot.State != StateActive || snapshot.NextDueAt.After(now) {
			continue
		}
		if snapshot.CurrentStep >= StepCount(snapshot.Type) {
			continue
		}
		if action, ok := s.executeStep(ctx, snapshot.ID, now); ok {
			actions = append(actions, action)
		}
	}
	return actions
}

// executeStep runs one due step under the contact lock, re-reading the
// enrollment so a concurrent mutation between snapshot and execution cannot
// double-send.
func (s *Service) executeStep(ctx context.Context, id string, now time.Time) (Action, bool) {
	seq, ok := s.store.Get(id)
	if !ok {
		return Action{}, false
	}

	unlock := s.lockContact(seq.ContactID)
	defer unlock()

	seq, ok = s.store.Get(id)
	if !ok || seq.State != StateActive || seq.NextDueAt.After(now) {
		return Action{}, false
	}

	def, _ := DefinitionFor(seq.Type)
	if seq.CurrentStep >= len(def.Steps) {
		return Action{}, false
	}
	step := def.Steps[seq.CurrentStep]

	action := Action{
		SequenceID:   seq.ID,
		ContactID:    seq.ContactID,
		SequenceType: seq.Type,
		StepNumber:   step.Number,
	}

	if !s.conditionsMet(ctx, seq, step) {
		s.advance(id, now, false)
		updated, _ := s.store.Get(id)
		if updated.State == StateCompleted {
			action.Status = StatusCompleted
		} else {
			action.Status = StatusSkipped
			action.NextDueAt = updated.NextDueAt
		}
		s.log.SequenceEvent("step_skipped", seq.ContactID, seq.Type.String(), seq.CurrentStep)
		return action, true
	}

	contact := domain.Contact{ID: seq.ContactID}
	if s.contacts != nil {
		if resolved, err := s.contacts.ContactByID(ctx, seq.ContactID); err == nil {
			contact = resolved
		} else {
			s.log.Warn("contact resolution failed, sending unpersonalized", "contact_id", seq.ContactID, "error", err)
		}
	}

	subject, body := RenderStep(step, contact)
	action.Subject = subject
	action.Body = body

	if step.RequiresReview {
		s.store.mu.Lock()
		if stored, ok := s.store.sequences[id]; ok {
			stored.State = StatePendingReview
		}
		s.store.mu.Unlock()
		action.Status = StatusPendingReview
		s.log.SequenceEvent("pending_review", seq.ContactID, seq.Type.String(), seq.CurrentStep)
		if s.bus != nil {
			s.bus.Publish(ctx, events.SequenceStepPendingReview{
				BaseEvent:    events.NewBaseEvent(),
				SequenceID:   seq.ID,
				ContactID:    seq.ContactID,
				SequenceType: seq.Type.String(),
				StepNumber:   step.Number,
				Subject:      subject,
			})
		}
		return action, true
	}

	if s.sender != nil {
		if err := s.sender.SendStep(ctx, contact, subject, body); err != nil {
			// State untouched: the next sweep retries this step.
			action.Status = StatusSendFailed
			action.Error = err.Error()
			s.log.Error("sequence step send failed", "sequence_id", seq.ID, "step", step.Number, "error", err)
			return action, true
		}
	}

	s.advance(id, now, true)
	updated, _ := s.store.Get(id)
	if updated.State == StateCompleted {
		action.Status = StatusCompleted
	} else {
		action.Status = StatusSent
		action.NextDueAt = updated.NextDueAt
	}

	s.log.SequenceEvent("step_sent", seq.ContactID, seq.Type.String(), seq.CurrentStep)
	if s.bus != nil {
		s.bus.Publish(ctx, events.SequenceStepSent{
			BaseEvent:    events.NewBaseEvent(),
			SequenceID:   seq.ID,
			ContactID:    seq.ContactID,
			SequenceType: seq.Type.String(),
			StepNumber:   step.Number,
			Completed:    updated.State == StateCompleted,
		})
	}
	return action, true
}

// ResolveReview settles a pending-review step: approval sends and advances,
// rejection skips and advances.
func (s *Service) ResolveReview(ctx context.Context, id string, approve bool, now time.Time) (Action, error) {
	seq, ok := s.store.Get(id)
	if !ok {
		return Action{}, apperr.NotFound("sequence not found").WithOp("sequences.ResolveReview")
	}
	if seq.State != StatePendingReview {
		return Action{}, apperr.Conflict("sequence is not pending review").WithOp("sequences.ResolveReview")
	}

	unlock := s.lockContact(seq.ContactID)
	defer unlock()

	def, _ := DefinitionFor(seq.Type)
	step := def.Steps[seq.CurrentStep]
	action := Action{
		SequenceID:   seq.ID,
		ContactID:    seq.ContactID,
		SequenceType: seq.Type,
		StepNumber:   step.Number,
	}

	if !approve {
		s.reactivate(id)
		s.advance(id, now, false)
		action.Status = StatusSkipped
		return action, nil
	}

	contact := domain.Contact{ID: seq.ContactID}
	if s.contacts != nil {
		if resolved, err := s.contacts.ContactByID(ctx, seq.ContactID); err == nil {
			contact = resolved
		}
	}
	subject, body := RenderStep(step, contact)
	action.Subject = subject
	action.Body = body

	if s.sender != nil {
		if err := s.sender.SendStep(ctx, contact, subject, body); err != nil {
			action.Status = StatusSendFailed
			action.Error = err.Error()
			return action, nil
		}
	}

	s.reactivate(id)
	s.advance(id, now, true)
	updated, _ := s.store.Get(id)
	if updated.State == StateCompleted {
		action.Status = StatusCompleted
	} else {
		action.Status = StatusSent
		action.NextDueAt = updated.NextDueAt
	}
	return action, nil
}

func (s *Service) reactivate(id string) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if stored, ok := s.store.sequences[id]; ok && stored.State == StatePendingReview {
		stored.State = StateActive
	}
}

// advance moves an enrollment past its current step. Sent steps are recorded
// as completed, gated ones as skipped; past the final step the enrollment
// transitions to Completed, otherwise the due time is recomputed from the
// next step's delay.
func (s *Service) advance(id string, now time.Time, sent bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	seq, ok := s.store.sequences[id]
	if !ok {
		return
	}

	if sent {
		seq.CompletedSteps = append(seq.CompletedSteps, seq.CurrentStep)
	} else {
		seq.SkippedSteps = append(seq.SkippedSteps, seq.CurrentStep)
	}
	seq.CurrentStep++

	def, _ := DefinitionFor(seq.Type)
	if seq.CurrentStep >= len(def.Steps) {
		seq.State = StateCompleted
		seq.PauseReason = ""
		if s.bus != nil {
			s.bus.Publish(context.Background(), events.SequenceCompleted{
				BaseEvent:    events.NewBaseEvent(),
				SequenceID:   seq.ID,
				ContactID:    seq.ContactID,
				SequenceType: seq.Type.String(),
				StepsSent:    len(seq.CompletedSteps),
			})
		}
		return
	}

	seq.NextDueAt = now.AddDate(0, 0, def.Steps[seq.CurrentStep].DelayDays)
}

func (s *Service) conditionsMet(ctx context.Context, seq ActiveSequence, step Step) bool {
	for _, name := range step.Conditions {
		cond, registered := s.conditions[name]
		if !registered {
			continue // unregistered conditions are permissive
		}
		if !cond(ctx, seq) {
			return false
		}
	}
	return true
}

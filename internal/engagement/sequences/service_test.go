package sequences

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"replyflow_backend/internal/engagement/domain"
	"replyflow_backend/platform/apperr"
	"replyflow_backend/platform/logger"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string // subjects in send order
	fail  bool
	errTo error
}

func (f *fakeSender) SendStep(_ context.Context, _ domain.Contact, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		if f.errTo == nil {
			f.errTo = errors.New("smtp unavailable")
		}
		return f.errTo
	}
	f.sent = append(f.sent, subject)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestService(sender StepSender) (*Service, *Store) {
	store := NewStore()
	return NewService(store, sender, nil, nil, logger.New("test")), store
}

func TestDetermineSequenceType(t *testing.T) {
	cases := []struct {
		name           string
		body           string
		classification domain.Classification
		want           domain.SequenceType
		wantOK         bool
	}{
		{
			// "demo" and "schedule" both appear; demo wins.
			name:           "demo beats meeting keyword",
			body:           "Can we schedule a demo next week?",
			classification: domain.Interested,
			want:           domain.SequenceDemoFollowUp,
			wantOK:         true,
		},
		{
			name:           "pricing inquiry",
			body:           "Please send over your pricing tiers.",
			classification: domain.Interested,
			want:           domain.SequencePricingFollowUp,
			wantOK:         true,
		},
		{
			name:           "meeting request",
			body:           "Happy to set up a call with our team.",
			classification: domain.MaybeInterested,
			want:           domain.SequenceMeetingFollowUp,
			wantOK:         true,
		},
		{
			name:           "interested without strong signals",
			body:           "Sounds great, send me the details.",
			classification: domain.Interested,
			want:           domain.SequenceInterestedAcceleration,
			wantOK:         true,
		},
		{
			name:           "maybe interested default",
			body:           "We might revisit this down the line.",
			classification: domain.MaybeInterested,
			want:           domain.SequenceMaybeInterestedNurture,
			wantOK:         true,
		},
		{
			name:           "not interested nurture",
			body:           "Thanks but we will pass for the moment.",
			classification: domain.NotInterested,
			want:           domain.SequenceNotInterestedNurture,
			wantOK:         true,
		},
		{
			name:           "explicit opt-out gets no sequence",
			body:           "Please unsubscribe me from all further emails.",
			classification: domain.NotInterested,
			wantOK:         false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := domain.InboundMessage{Body: tc.body}
			got, ok := DetermineSequenceType(msg, tc.classification, domain.DetectEngagementFactors(msg))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEnroll_UnknownTypeRejected(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceType("bogus"), time.Now())
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnroll_SchedulesFirstStep(t *testing.T) {
	svc, _ := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if seq.State != StateActive || seq.CurrentStep != 0 {
		t.Fatalf("unexpected fresh enrollment: %+v", seq)
	}
	if want := now.AddDate(0, 0, 1); !seq.NextDueAt.Equal(want) {
		t.Fatalf("NextDueAt = %v, want %v", seq.NextDueAt, want)
	}
}

func TestEnroll_HigherPriorityPreempts(t *testing.T) {
	svc, store := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	contact := domain.Contact{ID: "c1"}

	nurture, err := svc.Enroll(context.Background(), contact, domain.SequenceMaybeInterestedNurture, now)
	if err != nil {
		t.Fatalf("first enroll failed: %v", err)
	}

	demo, err := svc.Enroll(context.Background(), contact, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("preempting enroll failed: %v", err)
	}

	paused, _ := store.Get(nurture.ID)
	if paused.State != StatePaused || paused.PauseReason != "replaced" {
		t.Fatalf("expected old sequence paused as replaced, got %+v", paused)
	}

	holding, ok := store.HoldingForContact(contact.ID)
	if !ok || holding.ID != demo.ID {
		t.Fatalf("expected demo sequence to hold the slot, got %+v", holding)
	}
}

func TestEnroll_LowerPriorityRejected(t *testing.T) {
	svc, store := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	contact := domain.Contact{ID: "c1"}

	demo, err := svc.Enroll(context.Background(), contact, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	_, err = svc.Enroll(context.Background(), contact, domain.SequencePricingFollowUp, now)
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for lower-priority enrollment, got %v", err)
	}

	holding, ok := store.HoldingForContact(contact.ID)
	if !ok || holding.ID != demo.ID || holding.State != StateActive {
		t.Fatalf("demo sequence should keep the slot untouched, got %+v", holding)
	}
}

func TestProcessDue_SendsAndAdvances(t *testing.T) {
	sender := &fakeSender{}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	// Nothing due yet.
	if actions := svc.ProcessDue(context.Background(), now); len(actions) != 0 {
		t.Fatalf("expected no due steps at enrollment time, got %+v", actions)
	}

	// Step 1 due after one day.
	day1 := now.AddDate(0, 0, 1)
	actions := svc.ProcessDue(context.Background(), day1)
	if len(actions) != 1 || actions[0].Status != StatusSent || actions[0].StepNumber != 1 {
		t.Fatalf("expected step 1 sent, got %+v", actions)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.sentCount())
	}

	// Rerunning the same sweep is a no-op: the next step is not yet due.
	if actions := svc.ProcessDue(context.Background(), day1); len(actions) != 0 {
		t.Fatalf("expected idempotent sweep, got %+v", actions)
	}

	updated, _ := store.Get(seq.ID)
	if updated.CurrentStep != 1 || len(updated.CompletedSteps) != 1 {
		t.Fatalf("enrollment did not advance: %+v", updated)
	}
	if want := day1.AddDate(0, 0, 3); !updated.NextDueAt.Equal(want) {
		t.Fatalf("NextDueAt = %v, want %v", updated.NextDueAt, want)
	}
}

func TestProcessDue_RunsToCompletion(t *testing.T) {
	sender := &fakeSender{}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	var last Action
	at := now
	for i := 0; i < 10; i++ {
		at = at.AddDate(0, 0, 10)
		for _, a := range svc.ProcessDue(context.Background(), at) {
			last = a
		}
		if done, _ := store.Get(seq.ID); done.State == StateCompleted {
			break
		}
	}

	done, _ := store.Get(seq.ID)
	if done.State != StateCompleted {
		t.Fatalf("sequence never completed: %+v", done)
	}
	if last.Status != StatusCompleted {
		t.Fatalf("final action status %s, want %s", last.Status, StatusCompleted)
	}
	if sender.sentCount() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", sender.sentCount())
	}
	// Completed enrollments are retained for audit, not deleted.
	if _, ok := store.Get(seq.ID); !ok {
		t.Fatal("completed enrollment was dropped from the store")
	}
}

func TestProcessDue_SendFailureLeavesStepForRetry(t *testing.T) {
	sender := &fakeSender{fail: true}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequencePricingFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	day1 := now.AddDate(0, 0, 1)
	actions := svc.ProcessDue(context.Background(), day1)
	if len(actions) != 1 || actions[0].Status != StatusSendFailed {
		t.Fatalf("expected send failure action, got %+v", actions)
	}

	stuck, _ := store.Get(seq.ID)
	if stuck.CurrentStep != 0 || stuck.State != StateActive {
		t.Fatalf("failed step must not advance: %+v", stuck)
	}

	// Transport recovers; the same sweep time retries the same step.
	sender.fail = false
	actions = svc.ProcessDue(context.Background(), day1)
	if len(actions) != 1 || actions[0].Status != StatusSent || actions[0].StepNumber != 1 {
		t.Fatalf("expected retried step 1 sent, got %+v", actions)
	}
}

func TestProcessDue_OptOutSkipsGatedStep(t *testing.T) {
	sender := &fakeSender{}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceNotInterestedNurture, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	store.RecordOptOut("c1")

	actions := svc.ProcessDue(context.Background(), now.AddDate(0, 0, 30))
	if len(actions) != 1 || actions[0].Status != StatusSkipped {
		t.Fatalf("expected skipped step for opted-out contact, got %+v", actions)
	}
	if sender.sentCount() != 0 {
		t.Fatal("opted-out contact must not receive sends")
	}

	updated, _ := store.Get(seq.ID)
	if updated.CurrentStep != 1 || len(updated.SkippedSteps) != 1 {
		t.Fatalf("skipped step should still advance: %+v", updated)
	}
}

func TestProcessDue_RegisteredConditionGates(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	svc.RegisterCondition(CondNoDemoScheduled, func(context.Context, ActiveSequence) bool {
		return false // a demo is on the calendar, stop nudging
	})

	if _, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceDemoFollowUp, now); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	// Step 1 has no conditions and sends; step 2 is gated on the registered
	// condition and skips.
	day1 := now.AddDate(0, 0, 1)
	if actions := svc.ProcessDue(context.Background(), day1); len(actions) != 1 || actions[0].Status != StatusSent {
		t.Fatalf("expected step 1 sent, got %+v", actions)
	}
	day4 := day1.AddDate(0, 0, 3)
	actions := svc.ProcessDue(context.Background(), day4)
	if len(actions) != 1 || actions[0].Status != StatusSkipped || actions[0].StepNumber != 2 {
		t.Fatalf("expected step 2 skipped, got %+v", actions)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected only step 1 delivered, got %d sends", sender.sentCount())
	}
}

func TestProcessDue_ReviewStepHoldsForApproval(t *testing.T) {
	sender := &fakeSender{}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceInterestedAcceleration, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	// Walk to the final step, which requires review.
	at := now.AddDate(0, 0, 1)
	svc.ProcessDue(context.Background(), at)
	at = at.AddDate(0, 0, 3)
	svc.ProcessDue(context.Background(), at)
	at = at.AddDate(0, 0, 7)
	actions := svc.ProcessDue(context.Background(), at)
	if len(actions) != 1 || actions[0].Status != StatusPendingReview {
		t.Fatalf("expected pending review action, got %+v", actions)
	}
	if actions[0].Subject == "" || actions[0].Body == "" {
		t.Fatal("pending review action should carry the rendered draft")
	}

	held, _ := store.Get(seq.ID)
	if held.State != StatePendingReview || held.CurrentStep != 2 {
		t.Fatalf("expected sequence held at step 3: %+v", held)
	}

	// A further sweep must not advance a held sequence.
	if more := svc.ProcessDue(context.Background(), at.AddDate(0, 0, 30)); len(more) != 0 {
		t.Fatalf("held sequence advanced by sweep: %+v", more)
	}

	sentBefore := sender.sentCount()
	action, err := svc.ResolveReview(context.Background(), seq.ID, true, at)
	if err != nil {
		t.Fatalf("resolve review failed: %v", err)
	}
	if action.Status != StatusCompleted {
		t.Fatalf("approving the final step should complete the sequence, got %s", action.Status)
	}
	if sender.sentCount() != sentBefore+1 {
		t.Fatal("approved step was not delivered")
	}

	done, _ := store.Get(seq.ID)
	if done.State != StateCompleted {
		t.Fatalf("expected completed state, got %+v", done)
	}
}

func TestResolveReview_RejectSkipsStep(t *testing.T) {
	sender := &fakeSender{}
	svc, store := newTestService(sender)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceInterestedAcceleration, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	at := now.AddDate(0, 0, 1)
	svc.ProcessDue(context.Background(), at)
	at = at.AddDate(0, 0, 3)
	svc.ProcessDue(context.Background(), at)
	at = at.AddDate(0, 0, 7)
	svc.ProcessDue(context.Background(), at)

	sentBefore := sender.sentCount()
	action, err := svc.ResolveReview(context.Background(), seq.ID, false, at)
	if err != nil {
		t.Fatalf("resolve review failed: %v", err)
	}
	if action.Status != StatusSkipped {
		t.Fatalf("expected skipped action on rejection, got %s", action.Status)
	}
	if sender.sentCount() != sentBefore {
		t.Fatal("rejected step must not be delivered")
	}

	done, _ := store.Get(seq.ID)
	if done.State != StateCompleted || len(done.SkippedSteps) != 1 {
		t.Fatalf("rejected final step should complete with a skip: %+v", done)
	}
}

func TestResolveReview_RequiresPendingState(t *testing.T) {
	svc, _ := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceDemoFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	if _, err := svc.ResolveReview(context.Background(), seq.ID, true, now); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict resolving a non-pending sequence, got %v", err)
	}
	if _, err := svc.ResolveReview(context.Background(), "missing", true, now); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPauseAndResume(t *testing.T) {
	svc, store := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequencePricingFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}

	if err := svc.Pause(seq.ID, "manual hold"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	paused, _ := store.Get(seq.ID)
	if paused.State != StatePaused || paused.PauseReason != "manual hold" {
		t.Fatalf("unexpected paused state: %+v", paused)
	}

	later := now.AddDate(0, 0, 5)
	if err := svc.Resume(seq.ID, later); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	resumed, _ := store.Get(seq.ID)
	if resumed.State != StateActive || resumed.PauseReason != "" {
		t.Fatalf("unexpected resumed state: %+v", resumed)
	}
	if want := later.AddDate(0, 0, 1); !resumed.NextDueAt.Equal(want) {
		t.Fatalf("resumed NextDueAt = %v, want %v", resumed.NextDueAt, want)
	}
}

func TestResume_BlockedWhileAnotherSequenceHolds(t *testing.T) {
	svc, _ := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	contact := domain.Contact{ID: "c1"}

	nurture, err := svc.Enroll(context.Background(), contact, domain.SequenceMaybeInterestedNurture, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if _, err := svc.Enroll(context.Background(), contact, domain.SequenceMeetingFollowUp, now); err != nil {
		t.Fatalf("preempting enroll failed: %v", err)
	}

	if err := svc.Resume(nurture.ID, now); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict resuming while another sequence holds, got %v", err)
	}
}

func TestPause_NotFoundAndCompleted(t *testing.T) {
	svc, store := newTestService(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if err := svc.Pause("missing", "x"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	seq, err := svc.Enroll(context.Background(), domain.Contact{ID: "c1"}, domain.SequenceMeetingFollowUp, now)
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	at := now
	for i := 0; i < 5; i++ {
		at = at.AddDate(0, 0, 2)
		svc.ProcessDue(context.Background(), at)
	}
	if done, _ := store.Get(seq.ID); done.State != StateCompleted {
		t.Fatalf("expected completed sequence, got %+v", done)
	}
	if err := svc.Pause(seq.ID, "x"); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict pausing a completed sequence, got %v", err)
	}
}

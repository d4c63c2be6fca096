package sequences

import (
	"testing"
	"time"

	"replyflow_backend/internal/engagement/domain"
)

func TestStore_RestoreDemotesDuplicateHoldings(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// A corrupted snapshot with two holding enrollments for one contact.
	snapshot := []ActiveSequence{
		{ID: "s1", ContactID: "c1", Type: domain.SequenceMaybeInterestedNurture, State: StateActive, StartedAt: now.AddDate(0, 0, -10)},
		{ID: "s2", ContactID: "c1", Type: domain.SequenceDemoFollowUp, State: StateActive, StartedAt: now.AddDate(0, 0, -1)},
		{ID: "s3", ContactID: "c2", Type: domain.SequencePricingFollowUp, State: StateActive, StartedAt: now},
	}

	store := NewStore()
	store.Restore(snapshot, []string{"c9"})

	holding, ok := store.HoldingForContact("c1")
	if !ok || holding.ID != "s2" {
		t.Fatalf("expected most recently started enrollment to keep the slot, got %+v", holding)
	}
	demoted, _ := store.Get("s1")
	if demoted.State != StatePaused || demoted.PauseReason != "replaced" {
		t.Fatalf("expected older enrollment demoted, got %+v", demoted)
	}
	if _, ok := store.HoldingForContact("c2"); !ok {
		t.Fatal("unrelated contact lost its holding enrollment")
	}
	if !store.OptedOut("c9") {
		t.Fatal("opt-out set not restored")
	}
}

func TestStore_StatisticsAndSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := NewStore()
	store.Restore([]ActiveSequence{
		{ID: "s1", ContactID: "c1", Type: domain.SequenceDemoFollowUp, State: StateActive, NextDueAt: now.AddDate(0, 0, -1)},
		{ID: "s2", ContactID: "c2", Type: domain.SequenceDemoFollowUp, State: StateActive, NextDueAt: now.AddDate(0, 0, 2)},
		{ID: "s3", ContactID: "c3", Type: domain.SequenceMeetingFollowUp, State: StatePaused},
		{ID: "s4", ContactID: "c4", Type: domain.SequencePricingFollowUp, State: StateCompleted},
	}, nil)

	stats := store.Statistics(now)
	if stats.Total != 4 || stats.Active != 2 || stats.Paused != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.Due != 1 {
		t.Fatalf("expected 1 due enrollment, got %d", stats.Due)
	}
	if stats.ByType[domain.SequenceDemoFollowUp] != 2 {
		t.Fatalf("unexpected by-type counters: %+v", stats.ByType)
	}
	if stats.CompletionRate != 0.25 {
		t.Fatalf("completion rate %v, want 0.25", stats.CompletionRate)
	}

	seqs, _ := store.Snapshot()
	if len(seqs) != 4 {
		t.Fatalf("snapshot lost enrollments: %d", len(seqs))
	}
}

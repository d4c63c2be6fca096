package sequences

import (
	"sort"
	"sync"
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// State is the lifecycle state of an enrollment.
type State string

const (
	// StateActive means the sequence is progressing on schedule.
	StateActive State = "active"
	// StatePendingReview means the current step awaits manual approval.
	// The sequence holds its slot but does not auto-advance.
	StatePendingReview State = "pending_review"
	// StatePaused means the sequence was preempted or explicitly paused.
	// A paused sequence may be resumed at the step it left off.
	StatePaused State = "paused"
	// StateCompleted means every step ran or was skipped. Terminal.
	StateCompleted State = "completed"
)

// ActiveSequence is one contact's enrollment in a sequence definition.
// Records are retained after completion for audit; they are never physically
// deleted.
type ActiveSequence struct {
	ID             string
	ContactID      string
	Type           domain.SequenceType
	CurrentStep    int // index into the definition's Steps
	StartedAt      time.Time
	NextDueAt      time.Time
	CompletedSteps []int
	SkippedSteps   []int
	State          State
	PauseReason    string
}

// Holding reports whether the enrollment occupies the contact's single
// active-sequence slot (anything not paused and not completed).
func (a ActiveSequence) Holding() bool {
	return a.State == StateActive || a.State == StatePendingReview
}

func (a ActiveSequence) clone() ActiveSequence {
	out := a
	out.CompletedSteps = append([]int(nil), a.CompletedSteps...)
	out.SkippedSteps = append([]int(nil), a.SkippedSteps...)
	return out
}

// Store owns all ActiveSequence state plus the contact opt-out set consulted
// by gating conditions. A single mutex serializes mutations; the service
// additionally serializes per contact.
type Store struct {
	mu        sync.RWMutex
	sequences map[string]*ActiveSequence // by enrollment ID
	optedOut  map[string]struct{}        // contact IDs
}

// NewStore creates an empty sequence store.
func NewStore() *Store {
	return &Store{
		sequences: make(map[string]*ActiveSequence),
		optedOut:  make(map[string]struct{}),
	}
}

// Get returns a copy of the enrollment with the given ID.
func (s *Store) Get(id string) (ActiveSequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.sequences[id]
	if !ok {
		return ActiveSequence{}, false
	}
	return seq.clone(), true
}

// HoldingForContact returns the enrollment currently occupying the contact's
// active slot, if any.
func (s *Store) HoldingForContact(contactID string) (ActiveSequence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, seq := range s.sequences {
		if seq.ContactID == contactID && seq.Holding() {
			return seq.clone(), true
		}
	}
	return ActiveSequence{}, false
}

// RecordOptOut marks a contact as opted out of further sequence sends.
func (s *Store) RecordOptOut(contactID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optedOut[contactID] = struct{}{}
}

// OptedOut reports whether a contact has opted out.
func (s *Store) OptedOut(contactID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.optedOut[contactID]
	return ok
}

// all returns stable-ordered copies of every enrollment, sorted by contact ID
// then enrollment ID so sweeps are deterministic.
func (s *Store) all() []ActiveSequence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ActiveSequence, 0, len(s.sequences))
	for _, seq := range s.sequences {
		out = append(out, seq.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContactID != out[j].ContactID {
			return out[i].ContactID < out[j].ContactID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats is a snapshot of sequence store counters.
type Stats struct {
	Total          int                         `json:"total"`
	Active         int                         `json:"active"`
	Paused         int                         `json:"paused"`
	PendingReview  int                         `json:"pendingReview"`
	Completed      int                         `json:"completed"`
	Due            int                         `json:"due"`
	ByType         map[domain.SequenceType]int `json:"byType"`
	CompletionRate float64                     `json:"completionRate"`
}

// Statistics returns current counters; due counts are relative to now.
func (s *Store) Statistics(now time.Time) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByType: make(map[domain.SequenceType]int)}
	for _, seq := range s.sequences {
		stats.Total++
		stats.ByType[seq.Type]++
		switch seq.State {
		case StateActive:
			stats.Active++
			if !seq.NextDueAt.After(now) {
				stats.Due++
			}
		case StatePendingReview:
			stats.PendingReview++
		case StatePaused:
			stats.Paused++
		case StateCompleted:
			stats.Completed++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats
}

// Snapshot exports all enrollments and the opt-out set for persistence.
func (s *Store) Snapshot() ([]ActiveSequence, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := make([]ActiveSequence, 0, len(s.sequences))
	for _, seq := range s.sequences {
		seqs = append(seqs, seq.clone())
	}
	optOuts := make([]string, 0, len(s.optedOut))
	for id := range s.optedOut {
		optOuts = append(optOuts, id)
	}
	return seqs, optOuts
}

// Restore loads enrollments and opt-outs from a snapshot, replacing current
// state. Enrollments that would violate the one-active-per-contact invariant
// are pause-demoted, keeping the most recently started one active.
func (s *Store) Restore(seqs []ActiveSequence, optOuts []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences = make(map[string]*ActiveSequence, len(seqs))
	holding := make(map[string]*ActiveSequence)
	for _, seq := range seqs {
		copied := seq.clone()
		if copied.Holding() {
			if prev, ok := holding[copied.ContactID]; ok {
				if copied.StartedAt.After(prev.StartedAt) {
					prev.State = StatePaused
					prev.PauseReason = "replaced"
					holding[copied.ContactID] = &copied
				} else {
					copied.State = StatePaused
					copied.PauseReason = "replaced"
				}
			} else {
				holding[copied.ContactID] = &copied
			}
		}
		s.sequences[copied.ID] = &copied
	}

	s.optedOut = make(map[string]struct{}, len(optOuts))
	for _, id := range optOuts {
		s.optedOut[id] = struct{}{}
	}
}

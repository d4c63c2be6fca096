package threads

import (
	"sort"
	"sync"
	"time"
)

// Store owns all thread state and the processed-message-identifier set.
// All access goes through its methods; a single mutex serializes mutations so
// concurrent correlation of colliding thread keys stays safe.
type Store struct {
	mu        sync.RWMutex
	threads   map[string]*ConversationThread
	processed map[string]struct{}
}

// NewStore creates an empty thread store.
func NewStore() *Store {
	return &Store{
		threads:   make(map[string]*ConversationThread),
		processed: make(map[string]struct{}),
	}
}

// Seen reports whether the message identifier has already been processed.
func (s *Store) Seen(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[messageID]
	return ok
}

// Get returns a copy of the thread for the given key.
func (s *Store) Get(threadKey string) (ConversationThread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadKey]
	if !ok {
		return ConversationThread{}, false
	}
	return t.clone(), true
}

// RemoveOlderThan deletes threads whose last activity predates the cutoff.
// This is the retention sweep; it is triggered by a collaborator, never by
// correlation itself. Returns the number of threads removed.
func (s *Store) RemoveOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, t := range s.threads {
		if t.LastAt.Before(cutoff) {
			delete(s.threads, key)
			removed++
		}
	}
	return removed
}

// ActiveSince returns copies of threads with activity at or after the cutoff,
// most recent first.
func (s *Store) ActiveSince(cutoff time.Time) []ConversationThread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ConversationThread
	for _, t := range s.threads {
		if !t.LastAt.Before(cutoff) {
			out = append(out, t.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out
}

// Stats is a snapshot of thread store counters.
type Stats struct {
	TotalThreads       int `json:"totalThreads"`
	CampaignThreads    int `json:"campaignThreads"`
	NonCampaignThreads int `json:"nonCampaignThreads"`
	TotalMessages      int `json:"totalMessages"`
	ProcessedMessages  int `json:"processedMessages"`
}

// Statistics returns current store counters.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalThreads:      len(s.threads),
		ProcessedMessages: len(s.processed),
	}
	for _, t := range s.threads {
		stats.TotalMessages += len(t.Messages)
		if t.IsCampaignThread {
			stats.CampaignThreads++
		}
	}
	stats.NonCampaignThreads = stats.TotalThreads - stats.CampaignThreads
	return stats
}

// Snapshot exports all threads and processed message ids for persistence.
func (s *Store) Snapshot() ([]ConversationThread, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]ConversationThread, 0, len(s.threads))
	for _, t := range s.threads {
		threads = append(threads, t.clone())
	}
	ids := make([]string, 0, len(s.processed))
	for id := range s.processed {
		ids = append(ids, id)
	}
	return threads, ids
}

// Restore loads threads and processed ids from a snapshot, replacing current
// state. Used on process start before any correlation runs.
func (s *Store) Restore(threads []ConversationThread, processedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads = make(map[string]*ConversationThread, len(threads))
	for _, t := range threads {
		copied := t.clone()
		s.threads[t.ThreadKey] = &copied
	}
	s.processed = make(map[string]struct{}, len(processedIDs))
	for _, id := range processedIDs {
		s.processed[id] = struct{}{}
	}
}

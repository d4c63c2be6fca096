package service

import (
	"sync"
	"time"

	"replyflow_backend/internal/engagement/domain"
)

// ProcessingStats is a point-in-time copy of the pipeline counters.
type ProcessingStats struct {
	Processed         int       `json:"processed"`
	Filtered          int       `json:"filtered"`
	Interested        int       `json:"interested"`
	MaybeInterested   int       `json:"maybeInterested"`
	NotInterested     int       `json:"notInterested"`
	Fallback          int       `json:"fallback"`
	Opportunities     int       `json:"opportunities"`
	StepsSent         int       `json:"stepsSent"`
	ResponsesSent     int       `json:"responsesSent"`
	NotificationsSent int       `json:"notificationsSent"`
	Errors            int       `json:"errors"`
	AvgProcessingMs   float64   `json:"avgProcessingMs"`
	LastProcessedAt   time.Time `json:"lastProcessedAt"`
}

type statsCounters struct {
	mu       sync.Mutex
	observed int
	stats    ProcessingStats
}

func (c *statsCounters) incProcessed() {
	c.mu.Lock()
	c.stats.Processed++
	c.mu.Unlock()
}

func (c *statsCounters) incFiltered() {
	c.mu.Lock()
	c.stats.Filtered++
	c.mu.Unlock()
}

func (c *statsCounters) incClassified(result domain.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch result.Classification {
	case domain.Interested:
		c.stats.Interested++
	case domain.MaybeInterested:
		c.stats.MaybeInterested++
	case domain.NotInterested:
		c.stats.NotInterested++
	}
	if result.Fallback {
		c.stats.Fallback++
	}
}

func (c *statsCounters) incOpportunities() {
	c.mu.Lock()
	c.stats.Opportunities++
	c.mu.Unlock()
}

func (c *statsCounters) addStepsSent(n int) {
	c.mu.Lock()
	c.stats.StepsSent += n
	c.mu.Unlock()
}

func (c *statsCounters) incResponsesSent() {
	c.mu.Lock()
	c.stats.ResponsesSent++
	c.mu.Unlock()
}

func (c *statsCounters) addNotificationsSent(n int) {
	c.mu.Lock()
	c.stats.NotificationsSent += n
	c.mu.Unlock()
}

func (c *statsCounters) incErrors() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

// observeProcessing folds one pipeline run into the incremental average and
// advances the last-processed timestamp.
func (c *statsCounters) observeProcessing(elapsed time.Duration, finished time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed++
	ms := float64(elapsed) / float64(time.Millisecond)
	c.stats.AvgProcessingMs += (ms - c.stats.AvgProcessingMs) / float64(c.observed)
	if finished.After(c.stats.LastProcessedAt) {
		c.stats.LastProcessedAt = finished
	}
}

func (c *statsCounters) snapshot() ProcessingStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

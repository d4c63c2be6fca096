package scheduler

import (
	"context"
	"time"

	"replyflow_backend/internal/config"
	"replyflow_backend/platform/logger"
)

// Dispatcher periodically enqueues the recurring pipeline jobs. It only
// produces tasks; the Worker consumes them, so multiple worker replicas can
// share one dispatcher.
type Dispatcher struct {
	client        *Client
	fetchInterval time.Duration
	sweepInterval time.Duration
	fetchLimit    int
	log           *logger.Logger
}

func NewDispatcher(cfg *config.Config, client *Client, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		client:        client,
		fetchInterval: cfg.FetchInterval,
		sweepInterval: cfg.SweepInterval,
		fetchLimit:    cfg.FetchLimit,
		log:           log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	fetchTicker := time.NewTicker(d.fetchInterval)
	defer fetchTicker.Stop()
	sweepTicker := time.NewTicker(d.sweepInterval)
	defer sweepTicker.Stop()

	d.scheduleDailySummary(ctx)
	summaryTimer := time.NewTimer(untilNextMidnight(time.Now()))
	defer summaryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fetchTicker.C:
			if err := d.client.EnqueueMailboxFetch(ctx, d.fetchLimit); err != nil {
				d.log.Warn("enqueueing mailbox fetch failed", "error", err)
			}
		case <-sweepTicker.C:
			if err := d.client.EnqueueSequenceSweep(ctx, time.Now()); err != nil {
				d.log.Warn("enqueueing sequence sweep failed", "error", err)
			}
		case <-summaryTimer.C:
			d.scheduleDailySummary(ctx)
			summaryTimer.Reset(untilNextMidnight(time.Now()))
		}
	}
}

// scheduleDailySummary enqueues today's summary to run at end of day. The
// task is unique per day, so restarts do not double-send.
func (d *Dispatcher) scheduleDailySummary(ctx context.Context) {
	now := time.Now()
	runAt := now.Truncate(24 * time.Hour).Add(24*time.Hour - time.Minute)
	if err := d.client.EnqueueDailySummary(ctx, now, runAt); err != nil {
		d.log.Warn("enqueueing daily summary failed", "error", err)
	}
}

func untilNextMidnight(now time.Time) time.Duration {
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now) + time.Minute
}

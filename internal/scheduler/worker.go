package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"replyflow_backend/internal/config"
	"replyflow_backend/internal/email"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/service"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/internal/mailbox"
	"replyflow_backend/internal/persistence"
	"replyflow_backend/platform/logger"
)

// Worker executes the queued pipeline jobs: mailbox polls, sequence sweeps,
// and the daily summary.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux

	engagement  *service.Service
	seqService  *sequences.Service
	threadStore *threads.Store
	source      mailbox.Source
	notifier    *email.Notifier
	snapshots   *persistence.RedisStore
	retention   time.Duration
	log         *logger.Logger
}

func NewWorker(
	cfg *config.Config,
	engagement *service.Service,
	seqService *sequences.Service,
	threadStore *threads.Store,
	source mailbox.Source,
	notifier *email.Notifier,
	snapshots *persistence.RedisStore,
	log *logger.Logger,
) (*Worker, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(cfg.RedisURL, cfg.RedisTLSInsecure)
	if err != nil {
		return nil, err
	}

	queue := cfg.AsynqQueue
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.AsynqConcurrency
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		engagement:  engagement,
		seqService:  seqService,
		threadStore: threadStore,
		source:      source,
		notifier:    notifier,
		snapshots:   snapshots,
		retention:   cfg.ThreadRetention,
		log:         log,
	}

	mux.HandleFunc(TaskMailboxFetch, w.handleMailboxFetch)
	mux.HandleFunc(TaskSequenceSweep, w.handleSequenceSweep)
	mux.HandleFunc(TaskDailySummary, w.handleDailySummary)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleMailboxFetch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMailboxFetchPayload(task)
	if err != nil {
		return err
	}

	messages, err := w.source.Fetch(ctx, payload.Limit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	results := w.engagement.ProcessBatch(ctx, messages)

	processed := 0
	for _, r := range results {
		if !r.Skipped {
			processed++
		}
	}
	w.log.Info("mailbox batch processed", "fetched", len(messages), "processed", processed)

	w.saveSnapshots(ctx)
	return nil
}

func (w *Worker) handleSequenceSweep(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseSequenceSweepPayload(task); err != nil {
		return err
	}

	now := time.Now()
	actions := w.seqService.ProcessDue(ctx, now)

	sent := 0
	for _, action := range actions {
		switch action.Status {
		case sequences.StatusSent, sequences.StatusCompleted:
			sent++
		case sequences.StatusPendingReview:
			w.notifyPendingReview(ctx, action)
		}
	}
	if sent > 0 {
		w.engagement.NoteStepsSent(sent)
	}
	if len(actions) > 0 {
		w.log.Info("sequence sweep finished", "actions", len(actions), "sent", sent)
	}

	if w.retention > 0 {
		if removed := w.threadStore.RemoveOlderThan(now.Add(-w.retention)); removed > 0 {
			w.log.Info("pruned stale threads", "removed", removed)
		}
	}

	w.saveSnapshots(ctx)
	return nil
}

func (w *Worker) handleDailySummary(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDailySummaryPayload(task)
	if err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		date = time.Now()
	}

	if w.notifier != nil {
		w.notifier.SendDailySummary(ctx, w.engagement.DailySummary(date))
	}
	return nil
}

func (w *Worker) notifyPendingReview(ctx context.Context, action sequences.Action) {
	if w.notifier == nil {
		return
	}

	contact, err := w.seqService.ResolveContact(ctx, action.ContactID)
	if err != nil {
		w.log.Warn("cannot resolve contact for review alert", "contact_id", action.ContactID, "error", err)
		return
	}
	delivered := w.notifier.NotifyPendingReview(ctx, contact, action.SequenceType.String(), action.StepNumber, action.Subject, action.Body)
	w.engagement.NoteNotificationsSent(delivered)
}

func (w *Worker) saveSnapshots(ctx context.Context) {
	if w.snapshots == nil {
		return
	}
	if err := w.snapshots.SaveThreads(ctx, w.threadStore); err != nil {
		w.log.Error("saving thread snapshot failed", "error", err)
	}
	if err := w.snapshots.SaveSequences(ctx, w.seqService.Store()); err != nil {
		w.log.Error("saving sequence snapshot failed", "error", err)
	}
}

// The processor runs the reply pipeline as a single process without the
// Redis-backed job queue: it polls the mailbox and sweeps due sequence steps
// on local tickers. Suited for small deployments and local runs; larger
// setups split the work with cmd/scheduler.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"replyflow_backend/internal/classify"
	"replyflow_backend/internal/config"
	"replyflow_backend/internal/crm"
	"replyflow_backend/internal/email"
	"replyflow_backend/internal/engagement"
	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/events"
	"replyflow_backend/internal/mailbox"
	"replyflow_backend/internal/persistence"
	"replyflow_backend/platform/logger"
	"replyflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting processor", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	notifier := email.NewNotifier(sender, cfg.NotifyRecipients, log)

	crmStore := crm.NewMemoryStore()
	if strings.EqualFold(cfg.Env, "development") {
		crm.SeedDemoData(crmStore, time.Now())
		log.Info("seeded demo crm data")
	}

	classifier := buildClassifier(ctx, cfg, log)
	module := engagement.NewModule(cfg, crmStore, classifier, sender, notifier, eventBus, validator.New(), log)

	var snapshots *persistence.RedisStore
	if cfg.RedisURL != "" {
		snapshots, err = persistence.NewRedisStore(cfg.RedisURL, cfg.RedisTLSInsecure, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		defer func() { _ = snapshots.Close() }()

		if err := snapshots.LoadThreads(ctx, module.Threads()); err != nil {
			log.Error("restoring thread snapshot failed", "error", err)
		}
		if err := snapshots.LoadSequences(ctx, module.Sequences().Store()); err != nil {
			log.Error("restoring sequence snapshot failed", "error", err)
		}
	}

	var source mailbox.Source
	if cfg.IMAPHost != "" {
		source = mailbox.NewIMAPFetcher(mailbox.IMAPConfig{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
			Folder:   cfg.IMAPFolder,
		}, log)
	} else {
		log.Warn("IMAP_HOST not configured; mailbox polling disabled, use the HTTP API to submit messages")
	}

	fetchTicker := time.NewTicker(cfg.FetchInterval)
	defer fetchTicker.Stop()
	sweepTicker := time.NewTicker(cfg.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			saveSnapshots(context.Background(), snapshots, module, log)
			return

		case <-fetchTicker.C:
			if source == nil {
				continue
			}
			messages, err := source.Fetch(ctx, cfg.FetchLimit)
			if err != nil {
				log.Error("mailbox fetch failed", "error", err)
				continue
			}
			if len(messages) == 0 {
				continue
			}
			results := module.Service().ProcessBatch(ctx, messages)
			processed := 0
			for _, r := range results {
				if !r.Skipped {
					processed++
				}
			}
			log.Info("mailbox batch processed", "fetched", len(messages), "processed", processed)
			saveSnapshots(ctx, snapshots, module, log)

		case <-sweepTicker.C:
			now := time.Now()
			actions := module.Sequences().ProcessDue(ctx, now)
			sent := 0
			for _, action := range actions {
				if action.Status == sequences.StatusSent || action.Status == sequences.StatusCompleted {
					sent++
				}
			}
			if sent > 0 {
				module.Service().NoteStepsSent(sent)
			}
			if cfg.ThreadRetention > 0 {
				if removed := module.Threads().RemoveOlderThan(now.Add(-cfg.ThreadRetention)); removed > 0 {
					log.Info("pruned stale threads", "removed", removed)
				}
			}
			saveSnapshots(ctx, snapshots, module, log)
		}
	}
}

func saveSnapshots(ctx context.Context, snapshots *persistence.RedisStore, module *engagement.Module, log *logger.Logger) {
	if snapshots == nil {
		return
	}
	if err := snapshots.SaveThreads(ctx, module.Threads()); err != nil {
		log.Error("saving thread snapshot failed", "error", err)
	}
	if err := snapshots.SaveSequences(ctx, module.Sequences().Store()); err != nil {
		log.Error("saving sequence snapshot failed", "error", err)
	}
}

func buildClassifier(ctx context.Context, cfg *config.Config, log *logger.Logger) classify.Classifier {
	heuristic := classify.NewHeuristic()
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not configured; using heuristic classifier only")
		return classify.WithFallback{Fallback: heuristic}
	}

	gemini, err := classify.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.Error("failed to initialize gemini classifier, falling back to heuristics", "error", err)
		return classify.WithFallback{Fallback: heuristic}
	}
	return classify.WithFallback{Primary: gemini, Fallback: heuristic}
}

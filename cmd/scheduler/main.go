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
	"replyflow_backend/internal/events"
	"replyflow_backend/internal/mailbox"
	"replyflow_backend/internal/persistence"
	"replyflow_backend/internal/scheduler"
	"replyflow_backend/platform/logger"
	"replyflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the scheduler")
	}

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
	}

	classifier := buildClassifier(ctx, cfg, log)
	module := engagement.NewModule(cfg, crmStore, classifier, sender, notifier, eventBus, validator.New(), log)

	snapshots, err := persistence.NewRedisStore(cfg.RedisURL, cfg.RedisTLSInsecure, log)
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

	source := mailbox.NewIMAPFetcher(mailbox.IMAPConfig{
		Host:     cfg.IMAPHost,
		Port:     cfg.IMAPPort,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		Folder:   cfg.IMAPFolder,
	}, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewDispatcher(cfg, client, log)
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, module.Service(), module.Sequences(), module.Threads(), source, notifier, snapshots, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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

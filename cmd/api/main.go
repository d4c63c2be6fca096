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
	apphttp "replyflow_backend/internal/http"
	"replyflow_backend/internal/http/router"
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
	log.Info("starting api server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

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

	module := engagement.NewModule(cfg, crmStore, classifier, sender, notifier, eventBus, val, log)

	var health apphttp.HealthChecker
	if cfg.RedisURL != "" {
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
		health = snapshots
	}

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			module,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
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

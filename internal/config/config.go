package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Inbound mailbox (IMAP)
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPFolder   string
	FetchLimit   int

	// Outbound mail
	EmailEnabled     bool
	EmailProvider    string // "smtp" or "brevo"
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	BrevoAPIKey      string
	EmailFromName    string
	EmailFromAddress string

	// Sales team notifications
	NotifyRecipients []string

	// AI classification
	GeminiAPIKey string
	GeminiModel  string

	// Scheduler / persistence
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
	AsynqConcurrency int
	SweepInterval    time.Duration
	FetchInterval    time.Duration
	ThreadRetention  time.Duration

	// Scoring
	OpportunityScoreThreshold int

	CORSAllowAll bool
	CORSOrigins  []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getIntEnv("IMAP_PORT", 993),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:   getEnv("IMAP_FOLDER", "INBOX"),
		FetchLimit:   getIntEnv("FETCH_LIMIT", 50),

		EmailEnabled:     emailEnabled,
		EmailProvider:    getEnv("EMAIL_PROVIDER", "smtp"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		BrevoAPIKey:      brevoAPIKey,
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Sales Team"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		NotifyRecipients: splitCSV(getEnv("NOTIFY_RECIPIENTS", "")),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		SweepInterval:    mustDuration(getEnv("SEQUENCE_SWEEP_INTERVAL", "1m")),
		FetchInterval:    mustDuration(getEnv("MAIL_FETCH_INTERVAL", "5m")),
		ThreadRetention:  mustDuration(getEnv("THREAD_RETENTION", "720h")),

		OpportunityScoreThreshold: getIntEnv("OPPORTUNITY_SCORE_THRESHOLD", 50),

		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,
	}

	if cfg.EmailProvider != "smtp" && cfg.EmailProvider != "brevo" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be smtp or brevo")
	}
	if cfg.EmailEnabled && cfg.EmailProvider == "brevo" && cfg.BrevoAPIKey == "" {
		return nil, fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
	}
	if cfg.EmailEnabled && cfg.EmailProvider == "smtp" && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SEQUENCE_SWEEP_INTERVAL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"replyflow_backend/internal/config"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg *config.Config) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueMailboxFetch(ctx context.Context, limit int) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewMailboxFetchTask(MailboxFetchPayload{Limit: limit})
	if err != nil {
		return err
	}

	// Unique prevents overlapping fetches when a slow poll outlives the
	// dispatch interval.
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (c *Client) EnqueueSequenceSweep(ctx context.Context, requestedAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSequenceSweepTask(SequenceSweepPayload{RequestedAt: requestedAt.UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func (c *Client) EnqueueDailySummary(ctx context.Context, date time.Time, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewDailySummaryTask(DailySummaryPayload{Date: date.Format("2006-01-02")})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue), asynq.Unique(24*time.Hour))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// Package persistence snapshots the in-memory thread and sequence state to
// Redis so a restart resumes where the last process left off. Snapshots are
// whole-state JSON documents: the data volume is small and replacing the
// document atomically avoids partial-state reads.
package persistence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"replyflow_backend/internal/engagement/sequences"
	"replyflow_backend/internal/engagement/threads"
	"replyflow_backend/platform/logger"
)

const (
	keyThreads   = "replyflow:threads"
	keySequences = "replyflow:sequences"

	snapshotTTL = 30 * 24 * time.Hour
)

type threadDocument struct {
	Threads      []threads.ConversationThread `json:"threads"`
	ProcessedIDs []string                     `json:"processedIds"`
	SavedAt      time.Time                    `json:"savedAt"`
}

type sequenceDocument struct {
	Sequences []sequences.ActiveSequence `json:"sequences"`
	OptOuts   []string                   `json:"optOuts"`
	SavedAt   time.Time                  `json:"savedAt"`
}

// RedisStore persists engagement state snapshots.
type RedisStore struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisStore connects using a redis:// or rediss:// URL.
func NewRedisStore(redisURL string, tlsInsecure bool, log *logger.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opt.TLSConfig != nil && tlsInsecure {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &RedisStore{client: redis.NewClient(opt), log: log}, nil
}

// NewRedisStoreWithClient wraps an existing client. Tests pass a client
// pointed at miniredis.
func NewRedisStoreWithClient(client *redis.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveThreads replaces the thread snapshot.
func (s *RedisStore) SaveThreads(ctx context.Context, store *threads.Store) error {
	threadList, processedIDs := store.Snapshot()
	doc := threadDocument{Threads: threadList, ProcessedIDs: processedIDs, SavedAt: time.Now().UTC()}
	return s.save(ctx, keyThreads, doc)
}

// LoadThreads restores the thread snapshot into the store. A missing key is
// not an error; the store simply starts empty.
func (s *RedisStore) LoadThreads(ctx context.Context, store *threads.Store) error {
	var doc threadDocument
	found, err := s.load(ctx, keyThreads, &doc)
	if err != nil || !found {
		return err
	}
	store.Restore(doc.Threads, doc.ProcessedIDs)
	s.log.Info("restored thread snapshot", "threads", len(doc.Threads), "saved_at", doc.SavedAt)
	return nil
}

// SaveSequences replaces the sequence snapshot.
func (s *RedisStore) SaveSequences(ctx context.Context, store *sequences.Store) error {
	seqs, optOuts := store.Snapshot()
	doc := sequenceDocument{Sequences: seqs, OptOuts: optOuts, SavedAt: time.Now().UTC()}
	return s.save(ctx, keySequences, doc)
}

// LoadSequences restores the sequence snapshot into the store.
func (s *RedisStore) LoadSequences(ctx context.Context, store *sequences.Store) error {
	var doc sequenceDocument
	found, err := s.load(ctx, keySequences, &doc)
	if err != nil || !found {
		return err
	}
	store.Restore(doc.Sequences, doc.OptOuts)
	s.log.Info("restored sequence snapshot", "sequences", len(doc.Sequences), "saved_at", doc.SavedAt)
	return nil
}

func (s *RedisStore) save(ctx context.Context, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, key string, doc any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return false, fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return true, nil
}

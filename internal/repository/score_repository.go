package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisScoreRepository stores score records in Redis as JSON
type RedisScoreRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScoreRepository wraps client. Records expire after ttl; zero keeps them.
func NewRedisScoreRepository(client *redis.Client, ttl time.Duration) *RedisScoreRepository {
	return &RedisScoreRepository{client: client, ttl: ttl}
}

// GetScore reads the record stored under key
func (r *RedisScoreRepository) GetScore(ctx context.Context, key string) (*ScoreRecord, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}

	var rec ScoreRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("corrupt score record %s: %w", key, err)
	}
	return &rec, nil
}

// SaveScore writes record under key
func (r *RedisScoreRepository) SaveScore(ctx context.Context, key string, record *ScoreRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode score record: %w", err)
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	return nil
}

type memoryEntry struct {
	record  *ScoreRecord
	expires time.Time
}

// MemoryScoreRepository is an in-process ScoreRepository for single instances and tests
type MemoryScoreRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryScoreRepository creates an empty repository. Zero ttl keeps records forever.
func NewMemoryScoreRepository(ttl time.Duration) *MemoryScoreRepository {
	return &MemoryScoreRepository{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetScore returns a copy of the record stored under key
func (r *MemoryScoreRepository) GetScore(ctx context.Context, key string) (*ScoreRecord, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && r.now().After(e.expires)) {
		return nil, ErrScoreNotFound
	}
	return e.record.Clone(), nil
}

// SaveScore stores a copy of record under key
func (r *MemoryScoreRepository) SaveScore(ctx context.Context, key string, record *ScoreRecord) error {
	e := memoryEntry{record: record.Clone()}
	if r.ttl > 0 {
		e.expires = r.now().Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = e
	return nil
}

// Len reports how many records are stored, expired ones included
func (r *MemoryScoreRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

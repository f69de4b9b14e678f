package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// ErrCacheMiss is returned by PayloadCache.Get when no payload is cached
// for the exam. Callers fall back to PostgreSQL and self-heal the cache.
var ErrCacheMiss = errors.New("exam payload not cached")

// PayloadCache stores the student-facing exam payload (title, duration,
// questions stripped of answer keys) keyed by exam ID.
type PayloadCache interface {
	Get(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error)
	Set(ctx context.Context, payload *model.ExamPayload) error
}

// RedisPayloadCache is the Redis-backed PayloadCache used in production.
// Payloads have no TTL: they are invalidated by re-warming on publish and
// on startup, never by expiry mid-exam.
type RedisPayloadCache struct {
	rdb *redis.Client
}

// NewRedisPayloadCache creates a new RedisPayloadCache.
func NewRedisPayloadCache(rdb *redis.Client) *RedisPayloadCache {
	return &RedisPayloadCache{rdb: rdb}
}

// Get retrieves a cached exam payload. Returns ErrCacheMiss when absent.
func (c *RedisPayloadCache) Get(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get exam payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode exam payload: %w", err)
	}
	return &payload, nil
}

// Set stores an exam payload.
func (c *RedisPayloadCache) Set(ctx context.Context, payload *model.ExamPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode exam payload: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(payload.ExamID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("set exam payload: %w", err)
	}
	return nil
}

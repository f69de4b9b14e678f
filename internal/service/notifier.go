package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// TerminatedMessage is the Pub/Sub payload live clients receive when their
// session reaches a terminal status.
type TerminatedMessage struct {
	SessionID uuid.UUID           `json:"session_id"`
	Status    model.SessionStatus `json:"status"`
	Reason    string              `json:"reason"`
}

// RedisNotifier implements TerminationNotifier on Redis: result dispatch
// jobs go onto a list consumed by the dispatch worker, and live clients are
// told about termination over Pub/Sub.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// EnqueueResult pushes a finalized session onto the dispatch queue.
func (n *RedisNotifier) EnqueueResult(ctx context.Context, sessionID uuid.UUID) error {
	if err := n.rdb.RPush(ctx, config.WorkerKey.DispatchResultsQueue, sessionID.String()).Err(); err != nil {
		return fmt.Errorf("enqueue result dispatch: %w", err)
	}
	return nil
}

// PublishTerminated tells any subscribed client the session is over.
func (n *RedisNotifier) PublishTerminated(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, reason string) error {
	msg, err := json.Marshal(TerminatedMessage{
		SessionID: sessionID,
		Status:    status,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("encode termination message: %w", err)
	}
	if err := n.rdb.Publish(ctx, config.CacheKey.SessionTerminatedChannel(sessionID.String()), msg).Err(); err != nil {
		return fmt.Errorf("publish termination: %w", err)
	}
	return nil
}

package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKey         = "agent_core:status"
	lastDocKey       = "agent_core:last_doc_id"
	lastProcessedKey = "agent_core:last_processed_ts"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) SetState(ctx context.Context, state State) error {
	return s.rdb.Set(ctx, stateKey, string(state), 0).Err()
}

func (s *RedisStore) GetState(ctx context.Context) (State, error) {
	val, err := s.rdb.Get(ctx, stateKey).Result()
	if errors.Is(err, redis.Nil) {
		return Idle, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status: %w", err)
	}
	return State(val), nil
}

func (s *RedisStore) RecordProcessed(ctx context.Context, progress Progress) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lastDocKey, progress.DocID, 0)
		pipe.Set(ctx, lastProcessedKey, progress.At.Format(time.RFC3339), 0)
		return nil
	})
	return err
}

func (s *RedisStore) LastProcessed(ctx context.Context) (Progress, error) {
	vals, err := s.rdb.MGet(ctx, lastDocKey, lastProcessedKey).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("failed to read progress: %w", err)
	}

	var p Progress
	if id, ok := vals[0].(string); ok {
		p.DocID = id
	}
	if ts, ok := vals[1].(string); ok {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			p.At = at
		}
	}
	return p, nil
}

func (s *RedisStore) Publish(ctx context.Context, msg string) error {
	if err := s.rdb.Publish(ctx, TriggerChannel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}
	return nil
}

// Listen forwards control messages into trigger until ctx is cancelled. It
// owns its own subscription, so cancelling it leaves in-flight work alone.
func (s *RedisStore) Listen(ctx context.Context, trigger *Trigger, logger *slog.Logger) error {
	pubsub := s.rdb.Subscribe(ctx, TriggerChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TriggerChannel, err)
	}
	logger.Info("Listening for manual triggers", "channel", TriggerChannel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			kind := ParseKind(msg.Payload)
			if trigger.Notify(kind) {
				logger.Info("Manual trigger received", "message", msg.Payload, "kind", kind)
			} else {
				logger.Debug("Trigger coalesced", "message", msg.Payload, "kind", kind)
			}
		}
	}
}

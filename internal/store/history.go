package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHistoryLimit = 200

// Message is one chat history entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RedisHistoryStore keeps an ordered, capped chat log per user.
type RedisHistoryStore struct {
	redis *redis.Client
	limit int64
	now   func() time.Time
}

// NewRedisHistoryStore builds a history store keeping the last limit
// entries per user (200 when limit <= 0).
func NewRedisHistoryStore(client *redis.Client, limit int) *RedisHistoryStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &RedisHistoryStore{redis: client, limit: int64(limit), now: time.Now}
}

// Load returns the user's history oldest first. A user who has never written
// gets nil, which callers treat as first contact.
func (s *RedisHistoryStore) Load(ctx context.Context, userID string) ([]Message, error) {
	ctx, span := tracer.Start(ctx, "store.load_history")
	defer span.End()

	raw, err := s.redis.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("store: decode history entry: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Append adds a message and trims the list to the configured cap.
func (s *RedisHistoryStore) Append(ctx context.Context, userID, role, content string) error {
	ctx, span := tracer.Start(ctx, "store.append_history")
	defer span.End()

	data, err := json.Marshal(Message{Role: role, Content: content, Timestamp: s.now().UTC()})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: encode history entry: %w", err)
	}
	key := historyKey(userID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -s.limit, -1)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: append history: %w", err)
	}
	return nil
}

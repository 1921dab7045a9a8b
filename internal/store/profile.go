package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

const maxCursorRetries = 10

// RedisProfileStore keeps preference profiles and pagination cursors in Redis
// under the same per-user key prefix. Neither expires.
type RedisProfileStore struct {
	redis *redis.Client
}

// NewRedisProfileStore builds a profile store.
func NewRedisProfileStore(client *redis.Client) *RedisProfileStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	return &RedisProfileStore{redis: client}
}

// LoadProfile returns the stored profile, or nil when the user has none.
func (s *RedisProfileStore) LoadProfile(ctx context.Context, userID string) (*preferences.Profile, error) {
	ctx, span := tracer.Start(ctx, "store.load_profile")
	defer span.End()

	data, err := s.redis.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("store: load profile: %w", err)
	}
	var p preferences.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store: decode profile: %w", err)
	}
	if p.MusicPreferences == nil {
		p.MusicPreferences = []string{}
	}
	if p.Vibe == nil {
		p.Vibe = []string{}
	}
	return &p, nil
}

// SaveProfile overwrites the stored profile.
func (s *RedisProfileStore) SaveProfile(ctx context.Context, userID string, p preferences.Profile) error {
	ctx, span := tracer.Start(ctx, "store.save_profile")
	defer span.End()

	data, err := json.Marshal(p)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: encode profile: %w", err)
	}
	if err := s.redis.Set(ctx, profileKey(userID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store: save profile: %w", err)
	}
	return nil
}

// Load returns the user's pagination cursor, or nil when absent.
func (s *RedisProfileStore) Load(ctx context.Context, userID string) (*pagination.Cursor, error) {
	ctx, span := tracer.Start(ctx, "store.load_cursor")
	defer span.End()

	cur, err := readCursor(ctx, s.redis, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return cur, nil
}

// Update applies fn to the user's cursor inside an optimistic WATCH/MULTI
// transaction, retrying when another writer changed the key first.
func (s *RedisProfileStore) Update(ctx context.Context, userID string, fn func(*pagination.Cursor) (*pagination.Cursor, error)) error {
	ctx, span := tracer.Start(ctx, "store.update_cursor")
	defer span.End()

	key := cursorKey(userID)
	txf := func(tx *redis.Tx) error {
		current, err := readCursor(ctx, tx, userID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("store: encode cursor: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCursorRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		span.RecordError(err)
		return fmt.Errorf("store: update cursor: %w", err)
	}
	err := fmt.Errorf("store: update cursor: gave up after %d conflicting writes", maxCursorRetries)
	span.RecordError(err)
	return err
}

// ResetCursor deletes the user's cursor so the next turn lists from the top.
func (s *RedisProfileStore) ResetCursor(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, cursorKey(userID)).Err(); err != nil {
		return fmt.Errorf("store: reset cursor: %w", err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readCursor(ctx context.Context, r stringGetter, userID string) (*pagination.Cursor, error) {
	data, err := r.Get(ctx, cursorKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load cursor: %w", err)
	}
	var cur pagination.Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, fmt.Errorf("store: decode cursor: %w", err)
	}
	return &cur, nil
}

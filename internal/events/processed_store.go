// Package events tracks inbound message deliveries so a redelivered webhook
// or queue message is handled once.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore claims provider message ids in the processed_messages table.
type ProcessedStore struct {
	db  execer
	now func() time.Time
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newProcessedStoreWithExec(pool)
}

func newProcessedStoreWithExec(db execer) *ProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: db, now: time.Now}
}

// MarkProcessed claims a message id, returning false if another delivery
// already claimed it. Empty ids are never deduplicated.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, channel, messageID string) (bool, error) {
	if strings.TrimSpace(messageID) == "" {
		return true, nil
	}
	ct, err := s.db.Exec(ctx, `
		INSERT INTO processed_messages (channel, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, channel, messageID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Prune deletes claims older than retention and returns how many were removed.
// Providers stop redelivering long before a claim is pruned.
func (s *ProcessedStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("events: retention must be positive")
	}
	cutoff := s.now().UTC().Add(-retention)
	ct, err := s.db.Exec(ctx, `DELETE FROM processed_messages WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return ct.RowsAffected(), nil
}

// RunPruner prunes on every tick until ctx is cancelled.
func (s *ProcessedStore) RunPruner(ctx context.Context, interval, retention time.Duration, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Prune(ctx, retention)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("failed to prune processed messages", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("pruned processed messages", "removed", removed, "retention", retention.String())
			}
		}
	}
}

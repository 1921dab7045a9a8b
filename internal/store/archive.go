package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Recommendation is one venue list shown to a user.
type Recommendation struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Branch      string    `json:"branch"`
	Fingerprint string    `json:"fingerprint"`
	Venues      []string  `json:"venues"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArchiveStore writes a long-term log of messages and recommendations to
// Postgres. A nil *ArchiveStore is valid and records nothing.
type ArchiveStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewArchiveStore returns nil when db is nil so callers can wire it
// unconditionally.
func NewArchiveStore(db *sql.DB) *ArchiveStore {
	if db == nil {
		return nil
	}
	return &ArchiveStore{db: db, now: time.Now}
}

// RecordMessage appends one chat message to the archive.
func (s *ArchiveStore) RecordMessage(ctx context.Context, userID, role, content, channel string) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, user_id, role, content, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, role, content, channel, s.now().UTC())
	if err != nil {
		return fmt.Errorf("store: archive message: %w", err)
	}
	return nil
}

// RecordRecommendation logs a venue batch served to the user.
func (s *ArchiveStore) RecordRecommendation(ctx context.Context, rec Recommendation) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_log (id, user_id, branch, fingerprint, venues, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.UserID, rec.Branch, rec.Fingerprint, pq.Array(rec.Venues), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: archive recommendation: %w", err)
	}
	return nil
}

// Recommendations returns the user's most recent recommendations, newest first.
func (s *ArchiveStore) Recommendations(ctx context.Context, userID string, limit int) ([]Recommendation, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotFound
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, branch, fingerprint, venues, created_at
		FROM recommendation_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list recommendations: %w", err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var rec Recommendation
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Branch, &rec.Fingerprint, pq.Array(&rec.Venues), &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan recommendation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list recommendations: %w", err)
	}
	return out, nil
}

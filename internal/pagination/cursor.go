// Package pagination serves fixed-size batches of a user's matched venue list
// from a per-user cursor.
package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchSize is the number of venues in one page.
const BatchSize = 5

// Cursor is a user's position in the list built for one profile fingerprint.
type Cursor struct {
	Offset      int       `json:"offset"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists cursors. Update must apply fn atomically for one user.
// fn receives nil when no cursor exists; returning nil leaves storage untouched.
type Store interface {
	Load(ctx context.Context, userID string) (*Cursor, error)
	Update(ctx context.Context, userID string, fn func(*Cursor) (*Cursor, error)) error
}

// Paginator slices matched lists using a Store.
type Paginator struct {
	store Store
	size  int
	now   func() time.Time
}

// NewPaginator builds a paginator with the default batch size.
func NewPaginator(store Store) *Paginator {
	if store == nil {
		panic("pagination: store cannot be nil")
	}
	return &Paginator{store: store, size: BatchSize, now: time.Now}
}

// HasState reports whether the user has a cursor for this fingerprint. A
// cursor built for another profile does not count.
func (p *Paginator) HasState(ctx context.Context, userID, fingerprint string) (bool, error) {
	cur, err := p.store.Load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("pagination: load cursor: %w", err)
	}
	return cur != nil && cur.Fingerprint == fingerprint, nil
}

// NextBatch returns full[offset:offset+BatchSize] and advances the offset by
// BatchSize whether or not the batch was full. hasMore is true while the new
// offset is still inside the list. A missing cursor or one for a different
// fingerprint starts at zero.
func (p *Paginator) NextBatch(ctx context.Context, userID, fingerprint string, full []string) ([]string, bool, error) {
	var (
		batch   []string
		hasMore bool
	)
	err := p.store.Update(ctx, userID, func(cur *Cursor) (*Cursor, error) {
		offset := 0
		if cur != nil && cur.Fingerprint == fingerprint {
			offset = cur.Offset
		}
		batch = slice(full, offset, p.size)
		next := offset + p.size
		hasMore = next < len(full)
		return &Cursor{Offset: next, Fingerprint: fingerprint, UpdatedAt: p.now().UTC()}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("pagination: next batch: %w", err)
	}
	return batch, hasMore, nil
}

// Seed starts a fresh listing: it returns the first batch and sets the
// cursor to BatchSize regardless of any previous position.
func (p *Paginator) Seed(ctx context.Context, userID, fingerprint string, full []string) ([]string, bool, error) {
	batch := slice(full, 0, p.size)
	err := p.store.Update(ctx, userID, func(*Cursor) (*Cursor, error) {
		return &Cursor{Offset: p.size, Fingerprint: fingerprint, UpdatedAt: p.now().UTC()}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("pagination: seed: %w", err)
	}
	return batch, p.size < len(full), nil
}

func slice(full []string, offset, size int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(full) {
		return []string{}
	}
	end := offset + size
	if end > len(full) {
		end = len(full)
	}
	return append([]string(nil), full[offset:end]...)
}

// MemoryStore keeps cursors in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[string]Cursor
}

// NewMemoryStore creates an empty in-memory cursor store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]Cursor)}
}

// Load returns a copy of the user's cursor or nil.
func (m *MemoryStore) Load(_ context.Context, userID string) (*Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cursors[userID]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

// Update applies fn while holding the store lock.
func (m *MemoryStore) Update(_ context.Context, userID string, fn func(*Cursor) (*Cursor, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *Cursor
	if cur, ok := m.cursors[userID]; ok {
		current = &cur
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		m.cursors[userID] = *next
	}
	return nil
}

// Reset removes the user's cursor.
func (m *MemoryStore) Reset(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, userID)
	return nil
}

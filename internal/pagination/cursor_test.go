package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func venues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("club-%02d", i+1)
	}
	return out
}

func TestNextBatchSizesAndHasMore(t *testing.T) {
	p := NewPaginator(NewMemoryStore())
	ctx := context.Background()
	full := venues(12)

	wantSizes := []int{5, 5, 2, 0}
	wantMore := []bool{true, true, false, false}
	for i := range wantSizes {
		batch, more, err := p.NextBatch(ctx, "u1", "fp", full)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(batch) != wantSizes[i] || more != wantMore[i] {
			t.Fatalf("call %d: got size %d more %v, want %d %v", i, len(batch), more, wantSizes[i], wantMore[i])
		}
	}
}

func TestNextBatchContinuesAfterSeed(t *testing.T) {
	store := NewMemoryStore()
	p := NewPaginator(store)
	ctx := context.Background()
	full := venues(8)

	first, more, err := p.Seed(ctx, "u1", "fp", full)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(first) != 5 || first[0] != "club-01" || !more {
		t.Fatalf("unexpected seed batch %v more=%v", first, more)
	}
	cur, _ := store.Load(ctx, "u1")
	if cur == nil || cur.Offset != 5 || cur.Fingerprint != "fp" {
		t.Fatalf("unexpected cursor after seed: %+v", cur)
	}

	next, more, err := p.NextBatch(ctx, "u1", "fp", full)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(next) != 3 || next[0] != "club-06" || more {
		t.Fatalf("unexpected second batch %v more=%v", next, more)
	}
}

func TestFingerprintChangeResetsOffset(t *testing.T) {
	p := NewPaginator(NewMemoryStore())
	ctx := context.Background()
	full := venues(12)

	if _, _, err := p.Seed(ctx, "u1", "old", full); err != nil {
		t.Fatalf("seed: %v", err)
	}
	has, err := p.HasState(ctx, "u1", "new")
	if err != nil || has {
		t.Fatalf("expected no state for new fingerprint, got %v %v", has, err)
	}
	batch, _, err := p.NextBatch(ctx, "u1", "new", full)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if batch[0] != "club-01" {
		t.Fatalf("expected restart from first club, got %v", batch)
	}
}

func TestUsersAreIndependent(t *testing.T) {
	p := NewPaginator(NewMemoryStore())
	ctx := context.Background()
	full := venues(12)

	_, _, _ = p.NextBatch(ctx, "a", "fp", full)
	batch, _, _ := p.NextBatch(ctx, "b", "fp", full)
	if batch[0] != "club-01" {
		t.Fatalf("user b should start at zero, got %v", batch)
	}
}

func TestConcurrentNextBatchNeverRepeats(t *testing.T) {
	p := NewPaginator(NewMemoryStore())
	ctx := context.Background()
	full := venues(50)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, _, err := p.NextBatch(ctx, "u1", "fp", full)
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			mu.Lock()
			for _, v := range batch {
				seen[v]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Fatalf("expected every club served once, got %d distinct", len(seen))
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("%s served %d times", v, n)
		}
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*Cursor, error) {
	return nil, errors.New("down")
}

func (failingStore) Update(context.Context, string, func(*Cursor) (*Cursor, error)) error {
	return errors.New("down")
}

func TestStoreErrorsPropagate(t *testing.T) {
	p := NewPaginator(failingStore{})
	if _, _, err := p.NextBatch(context.Background(), "u1", "fp", venues(3)); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := p.HasState(context.Background(), "u1", "fp"); err == nil {
		t.Fatalf("expected error")
	}
}

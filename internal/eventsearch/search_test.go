package eventsearch

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubDirectory struct {
	byDate  map[string][]EventRecord
	queries []string
	names   [][]string
	err     error
}

func (s *stubDirectory) LookupEvents(_ context.Context, names []string, date time.Time) ([]EventRecord, error) {
	key := date.Format("2006-01-02")
	s.queries = append(s.queries, key)
	s.names = append(s.names, names)
	if s.err != nil {
		return nil, s.err
	}
	return s.byDate[key], nil
}

func link(s string) *string { return &s }

func event(venue, name, date string, ticket *string) EventRecord {
	d, _ := time.Parse("2006-01-02", date)
	return EventRecord{VenueName: venue, EventName: name, Date: d, TicketLink: ticket}
}

func TestFindEventsExpandsUntilTarget(t *testing.T) {
	dir := &stubDirectory{byDate: map[string][]EventRecord{
		"2025-03-01": {event("A", "one", "2025-03-01", link("t1")), event("B", "two", "2025-03-01", link("t2"))},
		"2025-03-02": {event("A", "three", "2025-03-02", nil)},
		"2025-03-03": {event("B", "four", "2025-03-03", link("t4")), event("A", "five", "2025-03-03", link("t5"))},
		"2025-03-04": {event("C", "six", "2025-03-04", link("t6"))},
		"2025-03-05": {event("A", "seven", "2025-03-05", link("t7"))},
	}}
	s := NewSearcher(dir)
	anchor := time.Date(2025, 3, 1, 21, 30, 0, 0, time.UTC)

	events, err := s.FindEvents(context.Background(), []string{"A", "B", "C"}, anchor)
	if err != nil {
		t.Fatalf("find events: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	wantQueries := []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04"}
	if len(dir.queries) != len(wantQueries) {
		t.Fatalf("queries = %v, want %v", dir.queries, wantQueries)
	}
	seen := map[string]bool{}
	for i, q := range dir.queries {
		if q != wantQueries[i] {
			t.Fatalf("queries = %v, want %v", dir.queries, wantQueries)
		}
		if seen[q] {
			t.Fatalf("date %s queried twice", q)
		}
		seen[q] = true
	}
	// Day three is ordered by club rank: A before B.
	if events[2].EventName != "five" || events[3].EventName != "four" {
		t.Fatalf("unexpected ordering: %+v", events)
	}
	for _, names := range dir.names {
		if len(names) != 3 {
			t.Fatalf("expected batched lookup over all clubs, got %v", names)
		}
	}
}

func TestFindEventsStopsAtWindowBound(t *testing.T) {
	dir := &stubDirectory{byDate: map[string][]EventRecord{
		"2025-03-01": {event("A", "one", "2025-03-01", link("t1"))},
	}}
	var observed int
	s := NewSearcher(dir, WithDaysObserver(func(n int) { observed = n }))

	events, err := s.FindEvents(context.Background(), []string{"A"}, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("find events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected accumulated short result, got %d", len(events))
	}
	if len(dir.queries) != 1+DefaultMaxExtraDays {
		t.Fatalf("expected %d queries, got %d", 1+DefaultMaxExtraDays, len(dir.queries))
	}
	if dir.queries[len(dir.queries)-1] != "2025-03-08" {
		t.Fatalf("unexpected last date %s", dir.queries[len(dir.queries)-1])
	}
	if observed != 8 {
		t.Fatalf("expected observer to see 8 days, got %d", observed)
	}
}

func TestFindEventsAnchorAloneCanSatisfyTarget(t *testing.T) {
	var records []EventRecord
	for _, n := range []string{"e", "d", "c", "b", "a"} {
		records = append(records, event("A", n, "2025-03-01", link(n)))
	}
	dir := &stubDirectory{byDate: map[string][]EventRecord{"2025-03-01": records}}
	events, err := NewSearcher(dir).FindEvents(context.Background(), []string{"A"}, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("find events: %v", err)
	}
	if len(dir.queries) != 1 {
		t.Fatalf("expected only the anchor date, got %v", dir.queries)
	}
	if events[0].EventName != "a" {
		t.Fatalf("expected name ordering within a venue, got %s", events[0].EventName)
	}
}

func TestFindEventsEmptyClubsSkipsDirectory(t *testing.T) {
	dir := &stubDirectory{}
	events, err := NewSearcher(dir).FindEvents(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 || len(dir.queries) != 0 {
		t.Fatalf("expected no work, got %d events %d queries", len(events), len(dir.queries))
	}
}

func TestFindEventsPropagatesDirectoryError(t *testing.T) {
	dir := &stubDirectory{err: errors.New("db down")}
	if _, err := NewSearcher(dir).FindEvents(context.Background(), []string{"A"}, time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCustomWindow(t *testing.T) {
	dir := &stubDirectory{}
	s := NewSearcher(dir, WithMinTarget(2), WithMaxExtraDays(8))
	if _, err := s.FindEvents(context.Background(), []string{"A"}, time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("find events: %v", err)
	}
	if len(dir.queries) != 9 || dir.queries[8] != "2025-02-07" {
		t.Fatalf("unexpected queries %v", dir.queries)
	}
}

func TestParseAnchor(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("timezone data unavailable")
	}
	now := time.Date(2025, 6, 30, 23, 30, 0, 0, time.UTC) // 00:30 on 1 July in London

	got := ParseAnchor("2025-07-04", now, loc)
	if got.Format("2006-01-02") != "2025-07-04" {
		t.Fatalf("unexpected parsed anchor %v", got)
	}
	for _, raw := range []string{"", "next friday", "2025-13-40"} {
		got = ParseAnchor(raw, now, loc)
		if got.Format("2006-01-02") != "2025-07-01" {
			t.Fatalf("ParseAnchor(%q) = %v, want London today", raw, got)
		}
	}
}

func TestWindowDaysReportsConfiguredWindow(t *testing.T) {
	if got := NewSearcher(&stubDirectory{}).WindowDays(); got != DefaultMaxExtraDays {
		t.Fatalf("default window = %d, want %d", got, DefaultMaxExtraDays)
	}
	if got := NewSearcher(&stubDirectory{}, WithMaxExtraDays(3)).WindowDays(); got != 3 {
		t.Fatalf("window = %d, want 3", got)
	}
	if got := NewSearcher(&stubDirectory{}, WithMaxExtraDays(-1)).WindowDays(); got != DefaultMaxExtraDays {
		t.Fatalf("negative override should be ignored, got %d", got)
	}
}

// Package eventsearch finds ticketed events for a club set, widening the date
// window one day at a time until enough results are found.
package eventsearch

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultMinTarget is the number of valid events that ends the search.
	DefaultMinTarget = 5
	// DefaultMaxExtraDays is how many days past the anchor may be queried.
	DefaultMaxExtraDays = 7
)

// EventRecord is a read-only event row from the event directory.
type EventRecord struct {
	VenueName  string    `json:"venue_name"`
	EventName  string    `json:"event_name"`
	Date       time.Time `json:"date"`
	TicketLink *string   `json:"tickets_link"`
	MinAge     int       `json:"min_age,omitempty"`
	StartTime  string    `json:"start_time,omitempty"`
	Price      string    `json:"price,omitempty"`
}

// Valid reports whether the event can be recommended. Only events with a
// ticket link qualify.
func (e EventRecord) Valid() bool {
	return e.TicketLink != nil
}

// Directory looks up events for many venues on one date in a single call.
type Directory interface {
	LookupEvents(ctx context.Context, venueNames []string, date time.Time) ([]EventRecord, error)
}

// Searcher runs the widening date-window search.
type Searcher struct {
	dir          Directory
	minTarget    int
	maxExtraDays int
	observe      func(daysQueried int)
}

// Option customizes a Searcher.
type Option func(*Searcher)

// WithMinTarget overrides the result count that stops the search.
func WithMinTarget(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.minTarget = n
		}
	}
}

// WithMaxExtraDays overrides the number of days searched after the anchor.
func WithMaxExtraDays(n int) Option {
	return func(s *Searcher) {
		if n >= 0 {
			s.maxExtraDays = n
		}
	}
}

// WithDaysObserver receives the number of dates queried by each search.
func WithDaysObserver(fn func(daysQueried int)) Option {
	return func(s *Searcher) {
		s.observe = fn
	}
}

// NewSearcher builds a searcher with the default window.
func NewSearcher(dir Directory, opts ...Option) *Searcher {
	if dir == nil {
		panic("eventsearch: directory cannot be nil")
	}
	s := &Searcher{dir: dir, minTarget: DefaultMinTarget, maxExtraDays: DefaultMaxExtraDays}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WindowDays reports how many days past the anchor a search may extend.
func (s *Searcher) WindowDays() int {
	return s.maxExtraDays
}

// FindEvents queries the anchor date and then each following day in order,
// at most once per date, until at least minTarget valid events have been
// collected or maxExtraDays is exhausted. Within a day, events follow the
// club ranking and then event name. The accumulated list is returned even
// when it is short or empty.
func (s *Searcher) FindEvents(ctx context.Context, clubs []string, anchor time.Time) ([]EventRecord, error) {
	events := []EventRecord{}
	if len(clubs) == 0 {
		return events, nil
	}
	rank := make(map[string]int, len(clubs))
	for i, c := range clubs {
		if _, ok := rank[c]; !ok {
			rank[c] = i
		}
	}
	day := startOfDay(anchor)
	queried := 0
	defer func() {
		if s.observe != nil {
			s.observe(queried)
		}
	}()

	for offset := 0; offset <= s.maxExtraDays; offset++ {
		if offset > 0 && len(events) >= s.minTarget {
			break
		}
		date := day.AddDate(0, 0, offset)
		records, err := s.dir.LookupEvents(ctx, clubs, date)
		queried++
		if err != nil {
			return nil, fmt.Errorf("eventsearch: lookup %s: %w", date.Format("2006-01-02"), err)
		}
		events = append(events, validInRankOrder(records, rank)...)
	}
	return events, nil
}

func validInRankOrder(records []EventRecord, rank map[string]int) []EventRecord {
	out := make([]EventRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rankOf(rank, out[i].VenueName), rankOf(rank, out[j].VenueName)
		if ri != rj {
			return ri < rj
		}
		return out[i].EventName < out[j].EventName
	})
	return out
}

func rankOf(rank map[string]int, venue string) int {
	if r, ok := rank[venue]; ok {
		return r
	}
	return len(rank)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseAnchor resolves a YYYY-MM-DD date in loc. Empty or invalid input
// resolves to today in loc.
func ParseAnchor(raw string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return d
	}
	return startOfDay(now.In(loc))
}

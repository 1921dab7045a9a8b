// Package directory reads venue and event records from Postgres.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/nightlife-concierge/internal/eventsearch"
)

// VenueDetails is the venue row shown alongside a recommendation. Missing
// columns are nil.
type VenueDetails struct {
	Name             string  `json:"name"`
	Municipality     *string `json:"municipality,omitempty"`
	Postcode         *string `json:"postcode,omitempty"`
	Address          *string `json:"address,omitempty"`
	Description      *string `json:"description,omitempty"`
	CocktailMaxPrice *string `json:"cocktail_max_price,omitempty"`
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresDirectory looks up venues and events with one batched query per call.
type PostgresDirectory struct {
	pool querier
}

// NewPostgresDirectory wraps a pgx pool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresDirectory{pool: pool}
}

func newDirectoryWithQuerier(q querier) *PostgresDirectory {
	if q == nil {
		panic("directory: querier required")
	}
	return &PostgresDirectory{pool: q}
}

// LookupVenues returns details for the named venues in no particular order.
// Unknown names are simply absent from the result.
func (d *PostgresDirectory) LookupVenues(ctx context.Context, names []string) ([]VenueDetails, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `
		SELECT name, municipality, postcode, address, description, cocktail_max_price
		FROM venues
		WHERE name = ANY($1)
	`
	rows, err := d.pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("directory: query venues: %w", err)
	}
	defer rows.Close()

	var out []VenueDetails
	for rows.Next() {
		var v VenueDetails
		if err := rows.Scan(&v.Name, &v.Municipality, &v.Postcode, &v.Address, &v.Description, &v.CocktailMaxPrice); err != nil {
			return nil, fmt.Errorf("directory: scan venue: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: read venues: %w", err)
	}
	return out, nil
}

// LookupEvents returns every event at the named venues on date, including
// rows without a ticket link.
func (d *PostgresDirectory) LookupEvents(ctx context.Context, names []string, date time.Time) ([]eventsearch.EventRecord, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `
		SELECT venue_name, event_name, event_date, tickets_link, min_age, start_time, price
		FROM events
		WHERE venue_name = ANY($1) AND event_date = $2::date
		ORDER BY venue_name, event_name
	`
	rows, err := d.pool.Query(ctx, query, names, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("directory: query events: %w", err)
	}
	defer rows.Close()

	var out []eventsearch.EventRecord
	for rows.Next() {
		var (
			rec       eventsearch.EventRecord
			eventName *string
			minAge    *int32
			startTime *string
			price     *string
		)
		if err := rows.Scan(&rec.VenueName, &eventName, &rec.Date, &rec.TicketLink, &minAge, &startTime, &price); err != nil {
			return nil, fmt.Errorf("directory: scan event: %w", err)
		}
		if eventName != nil {
			rec.EventName = *eventName
		}
		if minAge != nil {
			rec.MinAge = int(*minAge)
		}
		if startTime != nil {
			rec.StartTime = *startTime
		}
		if price != nil {
			rec.Price = *price
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: read events: %w", err)
	}
	return out, nil
}

// Package store persists per-user conversation state: the preference profile,
// the pagination cursor, chat history and the optional Postgres archive.
package store

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

var tracer = otel.Tracer("nightlife.internal.store")

func profileKey(userID string) string {
	return fmt.Sprintf("user:%s:preferences", userID)
}

func cursorKey(userID string) string {
	return fmt.Sprintf("user:%s:cursor", userID)
}

func historyKey(userID string) string {
	return fmt.Sprintf("user:%s:chat_history", userID)
}

// Package extraction turns free-form chat messages into preference updates and
// intent signals, and produces free-form answers.
package extraction

import (
	"context"

	"github.com/wolfman30/nightlife-concierge/internal/llm"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
)

// EventQuery is the intent classification of one message. It is never stored.
type EventQuery struct {
	WantsEvents   bool   `json:"wants_events"`
	Date          string `json:"date"`
	WantsMoreInfo bool   `json:"wants_more_info"`
	GeneralChat   bool   `json:"general_chat"`
}

// GeneralChatQuery is the fallback classification.
func GeneralChatQuery() EventQuery {
	return EventQuery{GeneralChat: true}
}

// Mode selects the system prompt for free-form answers.
type Mode string

const (
	// ModeMoreInfo answers questions from general knowledge only.
	ModeMoreInfo Mode = "more_info"
	// ModeGeneralChat replies and steers the user back to recommendations.
	ModeGeneralChat Mode = "general_chat"
)

// Extractor is the language collaborator used by the dialogue controller.
// ClassifyIntent and ExtractPreferences never fail: malformed or missing
// model output degrades to GeneralChatQuery and an empty Partial.
type Extractor interface {
	ClassifyIntent(ctx context.Context, message string) EventQuery
	ExtractPreferences(ctx context.Context, message string) preferences.Partial
	Answer(ctx context.Context, mode Mode, history []llm.Message, message string) (string, error)
}

package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/nightlife-concierge/internal/llm"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const (
	extractionTemperature = 0.5
	chatTemperature       = 0.8
	maxAnswerHistory      = 20
)

const moreInfoSystemPrompt = `You are a friendly London nightlife concierge chatting on WhatsApp.
Answer the user's question from general knowledge about clubs, neighbourhoods, dress codes, door policies and music scenes.
Do not invent prices, dates, guest lists or availability. If you are unsure, say so.
Keep the reply under 120 words.`

const generalChatSystemPrompt = `You are a friendly London nightlife concierge chatting on WhatsApp.
Reply briefly to the user and steer them back to what you can do:
recommend nightclubs for their saved tastes, show more clubs when they write "show more",
and find events for a date (for example "any events this Saturday?").
Keep the reply under 80 words.`

// LLMExtractor implements Extractor with a hosted language model.
type LLMExtractor struct {
	client llm.Client
	model  string
	logger *logging.Logger
	loc    *time.Location
	now    func() time.Time
}

// LLMOption customizes an LLMExtractor.
type LLMOption func(*LLMExtractor)

// WithModel pins the model name sent with every request.
func WithModel(model string) LLMOption {
	return func(e *LLMExtractor) {
		e.model = model
	}
}

// WithLocation sets the timezone used to resolve relative dates.
func WithLocation(loc *time.Location) LLMOption {
	return func(e *LLMExtractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LLMOption {
	return func(e *LLMExtractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewLLMExtractor builds an extractor on top of an llm.Client.
func NewLLMExtractor(client llm.Client, logger *logging.Logger, opts ...LLMOption) *LLMExtractor {
	if client == nil {
		panic("extraction: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &LLMExtractor{client: client, logger: logger, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractPreferences asks the model for a preference object and returns
// whatever fields survive validation.
func (e *LLMExtractor) ExtractPreferences(ctx context.Context, message string) preferences.Partial {
	prompt := fmt.Sprintf(`Extract nightlife preferences from this message: %q

Map them onto these options only:
%s
Budget: if the message gives an amount ("80 bucks", "£45") or a range ("30-60"), map it to a bucket:
up to 30 is "Up to £30", 31 to 60 is "£30-60", 61 to 100 is "£60-100", above 100 is "£100+".
Map loose wording onto the closest option ("afro" is "Deep House / Afro House", "luxury" is "High-end").
Only set vibe when the user clearly states one; naming music is not a vibe.
Pick at most 3 music preferences and at most 3 vibes.

Return only a JSON object:
{"gender": "", "music_preferences": [], "budget": "", "vibe": []}
Leave any field not mentioned empty.`, message, describeOptions())

	text, err := e.complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("preference extraction failed", "error", err)
		return preferences.Partial{}
	}
	obj, ok := decodeObject(text)
	if !ok {
		e.logger.Warn("preference extraction returned malformed output", "output", truncate(text, 200))
		return preferences.Partial{}
	}
	return partialFromObject(obj)
}

// ClassifyIntent asks the model what the message wants. Any failure is a
// general chat message.
func (e *LLMExtractor) ClassifyIntent(ctx context.Context, message string) EventQuery {
	today := e.now().In(e.loc).Format("2006-01-02 (Monday)")
	prompt := fmt.Sprintf(`Today is %s. Analyze this message: %q

1. wants_events: does the user want event recommendations (parties, lineups, what's on)?
2. date: if they want events, the requested date as YYYY-MM-DD, resolving words like "tomorrow" or "Saturday" from today. Leave empty if no date is given.
3. wants_more_info: are they asking for more information about a venue, area or nightlife in general?
4. general_chat: true when none of the above apply.

Return only a JSON object:
{"wants_events": false, "date": "", "wants_more_info": false, "general_chat": true}`, today, message)

	text, err := e.complete(ctx, prompt)
	if err != nil {
		e.logger.Warn("intent classification failed", "error", err)
		return GeneralChatQuery()
	}
	obj, ok := decodeObject(text)
	if !ok {
		e.logger.Warn("intent classification returned malformed output", "output", truncate(text, 200))
		return GeneralChatQuery()
	}
	q, ok := eventQueryFromObject(obj)
	if !ok {
		return GeneralChatQuery()
	}
	return q
}

// Answer produces a free-form reply with the system prompt for mode.
func (e *LLMExtractor) Answer(ctx context.Context, mode Mode, history []llm.Message, message string) (string, error) {
	system := generalChatSystemPrompt
	if mode == ModeMoreInfo {
		system = moreInfoSystemPrompt
	}
	if len(history) > maxAnswerHistory {
		history = history[len(history)-maxAnswerHistory:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		System:      []string{system},
		Messages:    messages,
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("extraction: answer: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("extraction: answer: empty reply")
	}
	return resp.Text, nil
}

func (e *LLMExtractor) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := e.client.Complete(ctx, llm.Request{
		Model:       e.model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   300,
		Temperature: extractionTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

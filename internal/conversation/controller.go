package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/nightlife-concierge/internal/directory"
	"github.com/wolfman30/nightlife-concierge/internal/eventsearch"
	"github.com/wolfman30/nightlife-concierge/internal/extraction"
	"github.com/wolfman30/nightlife-concierge/internal/llm"
	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/preferences"
	"github.com/wolfman30/nightlife-concierge/internal/store"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

var tracer = otel.Tracer("nightlife.internal.conversation")

// DefaultPaginationCue is the phrase that asks for the next batch of venues.
const DefaultPaginationCue = "show more"

// ProfileStore persists preference profiles.
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID string) (*preferences.Profile, error)
	SaveProfile(ctx context.Context, userID string, p preferences.Profile) error
}

// HistoryStore persists the per-user chat log. Load returns nil for a user
// who has never written.
type HistoryStore interface {
	Load(ctx context.Context, userID string) ([]store.Message, error)
	Append(ctx context.Context, userID, role, content string) error
}

// RuleMatcher resolves a complete profile to an ordered venue list.
type RuleMatcher interface {
	MatchRule(p preferences.Profile) (name string, clubs []string, ok bool)
}

// VenueDirectory looks up venue details by name.
type VenueDirectory interface {
	LookupVenues(ctx context.Context, names []string) ([]directory.VenueDetails, error)
}

// EventFinder runs the date-window event search.
type EventFinder interface {
	FindEvents(ctx context.Context, clubs []string, anchor time.Time) ([]eventsearch.EventRecord, error)
}

// windowReporter is implemented by finders with a bounded search window.
type windowReporter interface {
	WindowDays() int
}

// Archive records messages and recommendations for later review.
type Archive interface {
	RecordMessage(ctx context.Context, userID, role, content, channel string) error
	RecordRecommendation(ctx context.Context, rec store.Recommendation) error
}

// Dependencies are the collaborators a Controller needs. All are required.
type Dependencies struct {
	Profiles  ProfileStore
	History   HistoryStore
	Cursor    *pagination.Paginator
	Rules     RuleMatcher
	Venues    VenueDirectory
	Events    EventFinder
	Extractor extraction.Extractor
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithArchive records every message and venue batch.
func WithArchive(archive Archive) ControllerOption {
	return func(c *Controller) {
		c.archive = archive
	}
}

// WithMetrics counts turns by branch.
func WithMetrics(m *metrics.ConciergeMetrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithPaginationCue overrides the "show more" phrase. Matching is
// case-insensitive.
func WithPaginationCue(cue string) ControllerOption {
	return func(c *Controller) {
		if cue = strings.ToLower(strings.TrimSpace(cue)); cue != "" {
			c.cue = cue
		}
	}
}

// WithLocation sets the timezone used to resolve "today".
func WithLocation(loc *time.Location) ControllerOption {
	return func(c *Controller) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller routes one user message to exactly one reply. Routing priority
// is onboarding, slot filling, pagination, initial listing, events, more info
// and finally general chat.
type Controller struct {
	profiles  ProfileStore
	history   HistoryStore
	cursor    *pagination.Paginator
	rules     RuleMatcher
	venues    VenueDirectory
	events    EventFinder
	extractor extraction.Extractor
	archive   Archive
	metrics   *metrics.ConciergeMetrics
	logger    *logging.Logger
	cue       string
	loc       *time.Location
	now       func() time.Time

	eventWindowDays int
}

var _ Service = (*Controller)(nil)

// NewController wires the dialogue controller.
func NewController(deps Dependencies, logger *logging.Logger, opts ...ControllerOption) *Controller {
	switch {
	case deps.Profiles == nil:
		panic("conversation: profile store cannot be nil")
	case deps.History == nil:
		panic("conversation: history store cannot be nil")
	case deps.Cursor == nil:
		panic("conversation: paginator cannot be nil")
	case deps.Rules == nil:
		panic("conversation: rule matcher cannot be nil")
	case deps.Venues == nil:
		panic("conversation: venue directory cannot be nil")
	case deps.Events == nil:
		panic("conversation: event finder cannot be nil")
	case deps.Extractor == nil:
		panic("conversation: extractor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := &Controller{
		profiles:  deps.Profiles,
		history:   deps.History,
		cursor:    deps.Cursor,
		rules:     deps.Rules,
		venues:    deps.Venues,
		events:    deps.Events,
		extractor: deps.Extractor,
		logger:    logger,
		cue:       DefaultPaginationCue,
		loc:       time.UTC,
		now:       time.Now,
	}
	c.eventWindowDays = eventsearch.DefaultMaxExtraDays
	if w, ok := deps.Events.(windowReporter); ok {
		c.eventWindowDays = w.WindowDays()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessMessage runs one turn. Errors are returned only for store and
// directory failures; the caller turns them into the generic apology.
func (c *Controller) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	ctx, span := tracer.Start(ctx, "conversation.process_message", trace.WithAttributes(
		attribute.String("nightlife.user_id", req.UserID),
		attribute.String("nightlife.channel", string(req.Channel)),
	))
	defer span.End()

	resp, err := c.route(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("nightlife.branch", string(resp.Branch)))
	return resp, nil
}

func (c *Controller) route(ctx context.Context, req MessageRequest) (*Response, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, errors.New("conversation: user id required")
	}
	req.UserID = userID
	text := strings.TrimSpace(req.Message)

	history, err := c.history.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	if err := c.record(ctx, req, llm.RoleUser, req.Message); err != nil {
		return nil, err
	}
	if history == nil {
		return c.reply(ctx, req, BranchOnboarding, onboardingMessage, nil)
	}

	profile, err := c.updateProfile(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	if missing := preferences.MissingSlots(profile); len(missing) > 0 {
		return c.reply(ctx, req, BranchSlotFilling, formatMissingSlots(missing), nil)
	}

	fingerprint := preferences.Fingerprint(profile)
	if c.wantsNextBatch(text) {
		return c.nextBatch(ctx, req, profile, fingerprint)
	}

	seeded, err := c.cursor.HasState(ctx, userID, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if !seeded {
		return c.initialListing(ctx, req, profile, fingerprint)
	}

	query := c.extractor.ClassifyIntent(ctx, text)
	switch {
	case query.WantsEvents:
		return c.findEvents(ctx, req, profile, query.Date)
	case query.WantsMoreInfo:
		return c.answer(ctx, req, BranchMoreInfo, extraction.ModeMoreInfo, history, text)
	default:
		return c.answer(ctx, req, BranchGeneralChat, extraction.ModeGeneralChat, history, text)
	}
}

func (c *Controller) updateProfile(ctx context.Context, userID, text string) (preferences.Profile, error) {
	stored, err := c.profiles.LoadProfile(ctx, userID)
	if err != nil {
		return preferences.Profile{}, fmt.Errorf("conversation: load profile: %w", err)
	}
	current := preferences.New()
	if stored != nil {
		current = *stored
	}

	partial := c.extractor.ExtractPreferences(ctx, text)
	merged := preferences.Normalize(current, partial)
	if err := c.profiles.SaveProfile(ctx, userID, merged); err != nil {
		return preferences.Profile{}, fmt.Errorf("conversation: save profile: %w", err)
	}
	if !preferences.Equal(current, merged) {
		c.logger.Debug("preferences updated", "user_id", userID, "missing", len(preferences.MissingSlots(merged)))
	}
	return merged, nil
}

func (c *Controller) wantsNextBatch(text string) bool {
	return strings.Contains(strings.ToLower(text), c.cue)
}

func (c *Controller) nextBatch(ctx context.Context, req MessageRequest, profile preferences.Profile, fingerprint string) (*Response, error) {
	_, clubs, ok := c.rules.MatchRule(profile)
	if !ok {
		return c.reply(ctx, req, BranchPagination, noMatchingVenuesMessage, nil)
	}
	batch, hasMore, err := c.cursor.NextBatch(ctx, req.UserID, fingerprint, clubs)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	if len(batch) == 0 {
		return c.reply(ctx, req, BranchPagination, noMoreVenuesMessage, nil)
	}
	return c.listVenues(ctx, req, BranchPagination, fingerprint, batch, hasMore)
}

func (c *Controller) initialListing(ctx context.Context, req MessageRequest, profile preferences.Profile, fingerprint string) (*Response, error) {
	rule, clubs, ok := c.rules.MatchRule(profile)
	if !ok {
		// An empty cursor marks the listing as shown so later turns reach the
		// events and chat branches.
		if _, _, err := c.cursor.Seed(ctx, req.UserID, fingerprint, nil); err != nil {
			return nil, fmt.Errorf("conversation: %w", err)
		}
		return c.reply(ctx, req, BranchRecommendation, noMatchingVenuesMessage, nil)
	}
	batch, hasMore, err := c.cursor.Seed(ctx, req.UserID, fingerprint, clubs)
	if err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	c.logger.Info("venues matched", "user_id", req.UserID, "rule", rule, "matched", len(clubs))
	return c.listVenues(ctx, req, BranchRecommendation, fingerprint, batch, hasMore)
}

func (c *Controller) listVenues(ctx context.Context, req MessageRequest, branch Branch, fingerprint string, batch []string, hasMore bool) (*Response, error) {
	details, err := c.venues.LookupVenues(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("conversation: lookup venues: %w", err)
	}
	resp, err := c.reply(ctx, req, branch, formatVenues(batch, details, hasMore, c.cue), batch)
	if err != nil {
		return nil, err
	}
	if c.archive != nil {
		rec := store.Recommendation{
			UserID:      req.UserID,
			Branch:      string(branch),
			Fingerprint: fingerprint,
			Venues:      batch,
		}
		if err := c.archive.RecordRecommendation(ctx, rec); err != nil {
			c.logger.Warn("failed to archive recommendation", "error", err, "user_id", req.UserID)
		}
	}
	return resp, nil
}

func (c *Controller) findEvents(ctx context.Context, req MessageRequest, profile preferences.Profile, rawDate string) (*Response, error) {
	anchor := eventsearch.ParseAnchor(rawDate, c.now(), c.loc)
	_, clubs, _ := c.rules.MatchRule(profile)

	events, err := c.events.FindEvents(ctx, clubs, anchor)
	if err != nil {
		return nil, fmt.Errorf("conversation: find events: %w", err)
	}
	if len(events) == 0 {
		return c.reply(ctx, req, BranchEvents, formatNoEvents(c.eventWindowDays), nil)
	}
	return c.reply(ctx, req, BranchEvents, formatEvents(anchor.Format("2006-01-02"), events), nil)
}

func (c *Controller) answer(ctx context.Context, req MessageRequest, branch Branch, mode extraction.Mode, history []store.Message, text string) (*Response, error) {
	reply, err := c.extractor.Answer(ctx, mode, toLLMHistory(history), text)
	if err != nil {
		c.logger.Warn("free-form answer failed", "error", err, "user_id", req.UserID, "mode", mode)
		reply = apologyMessage
	}
	if strings.TrimSpace(reply) == "" {
		reply = emptyAnswerMessage
	}
	return c.reply(ctx, req, branch, reply, nil)
}

// reply persists the assistant message and builds the turn response.
func (c *Controller) reply(ctx context.Context, req MessageRequest, branch Branch, body string, venues []string) (*Response, error) {
	if err := c.record(ctx, req, llm.RoleAssistant, body); err != nil {
		return nil, err
	}
	c.metrics.ObserveTurn(string(branch))
	c.logger.Info("conversation turn routed", "user_id", req.UserID, "branch", branch)
	return &Response{
		UserID:    req.UserID,
		Message:   body,
		Branch:    branch,
		Venues:    venues,
		Timestamp: c.now().UTC(),
	}, nil
}

func (c *Controller) record(ctx context.Context, req MessageRequest, role, content string) error {
	if err := c.history.Append(ctx, req.UserID, role, content); err != nil {
		return fmt.Errorf("conversation: append %s message: %w", role, err)
	}
	if c.archive != nil {
		if err := c.archive.RecordMessage(ctx, req.UserID, role, content, string(req.Channel)); err != nil {
			c.logger.Warn("failed to archive message", "error", err, "user_id", req.UserID, "role", role)
		}
	}
	return nil
}

func toLLMHistory(history []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/directory"
	"github.com/wolfman30/nightlife-concierge/internal/eventsearch"
	"github.com/wolfman30/nightlife-concierge/internal/extraction"
	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/internal/pagination"
	"github.com/wolfman30/nightlife-concierge/internal/store"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// Infrastructure holds the shared clients a conversation controller is
// assembled from. Archive, Metrics and RuleObjects are optional.
type Infrastructure struct {
	Redis       *redis.Client
	Postgres    *pgxpool.Pool
	Archive     *store.ArchiveStore
	Extractor   extraction.Extractor
	Metrics     *metrics.ConciergeMetrics
	RuleObjects RuleObjectGetter
}

// BuildController wires the recommendation controller: Redis profiles,
// cursors and history, the Postgres venue/event directory, the rule table and
// the date-window event search.
func BuildController(ctx context.Context, cfg *appconfig.Config, infra Infrastructure, logger *logging.Logger) (*conversation.Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if infra.Redis == nil {
		return nil, fmt.Errorf("bootstrap: redis is required for profiles and history")
	}
	if infra.Postgres == nil {
		return nil, fmt.Errorf("bootstrap: postgres is required for the venue directory")
	}
	if infra.Extractor == nil {
		return nil, fmt.Errorf("bootstrap: extractor is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	rules, err := LoadRules(ctx, cfg.RulesPath, infra.RuleObjects)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load rules: %w", err)
	}

	profiles := store.NewRedisProfileStore(infra.Redis)
	dir := directory.NewPostgresDirectory(infra.Postgres)
	searcher := eventsearch.NewSearcher(dir,
		eventsearch.WithMinTarget(cfg.EventMinResults),
		eventsearch.WithMaxExtraDays(cfg.EventWindowDays),
		eventsearch.WithDaysObserver(infra.Metrics.ObserveEventSearchDays),
	)

	opts := []conversation.ControllerOption{
		conversation.WithMetrics(infra.Metrics),
		conversation.WithPaginationCue(cfg.PaginationCue),
		conversation.WithLocation(cfg.Location()),
	}
	if infra.Archive != nil {
		opts = append(opts, conversation.WithArchive(infra.Archive))
	}

	logger.Info("conversation controller ready",
		"rules", cfg.RulesPath,
		"rule_count", rules.Len(),
		"pagination_cue", cfg.PaginationCue,
		"timezone", cfg.Timezone,
		"archive", infra.Archive != nil,
	)
	return conversation.NewController(conversation.Dependencies{
		Profiles:  profiles,
		History:   store.NewRedisHistoryStore(infra.Redis, cfg.HistoryMaxMessages),
		Cursor:    pagination.NewPaginator(profiles),
		Rules:     rules,
		Venues:    dir,
		Events:    searcher,
		Extractor: infra.Extractor,
	}, logger, opts...), nil
}

package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/internal/observability/metrics"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const (
	channelLabel         = string(conversation.ChannelWhatsApp)
	dedupCacheSize       = 4096
	defaultDedupTTL      = 10 * time.Minute
	metadataPhoneNumber  = "phone_number_id"
	metadataSenderName   = "sender_name"
	metadataReceivedAt   = "received_at"
)

type messageEnqueuer interface {
	EnqueueMessage(ctx context.Context, jobID string, req conversation.MessageRequest, opts ...conversation.PublishOption) error
}

// Config holds the WhatsApp Cloud API credentials.
type Config struct {
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	GraphAPIBase  string
}

// Adapter connects the WhatsApp Cloud API to the conversation pipeline.
// Webhook deliveries become queued jobs and replies go out through the
// embedded Messenger.
type Adapter struct {
	*Messenger
	webhook  *WebhookHandler
	enqueuer messageEnqueuer
	metrics  *metrics.ConciergeMetrics
	logger   *logging.Logger

	dedupMu  sync.Mutex
	dedup    *lru.Cache[string, time.Time]
	dedupTTL time.Duration
	now      func() time.Time
}

var _ conversation.ReplyMessenger = (*Adapter)(nil)

// Option customizes the adapter.
type Option func(*Adapter)

// WithMetrics records inbound webhook counts and latency.
func WithMetrics(m *metrics.ConciergeMetrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithDedupTTL sets how long a message id is remembered.
func WithDedupTTL(ttl time.Duration) Option {
	return func(a *Adapter) {
		if ttl > 0 {
			a.dedupTTL = ttl
		}
	}
}

// NewAdapter creates a WhatsApp adapter that enqueues inbound messages.
func NewAdapter(cfg Config, enqueuer messageEnqueuer, logger *logging.Logger, opts ...Option) (*Adapter, error) {
	if enqueuer == nil {
		panic("whatsapp: enqueuer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cache, err := lru.New[string, time.Time](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: dedup cache init: %w", err)
	}

	a := &Adapter{
		Messenger: NewMessenger(cfg, logger),
		enqueuer:  enqueuer,
		logger:    logger,
		dedup:     cache,
		dedupTTL:  defaultDedupTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.webhook = NewWebhookHandler(cfg.VerifyToken, a.dispatch, logger)
	return a, nil
}

// HandleVerification handles GET /webhooks/whatsapp.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/whatsapp.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if a.webhook.HandleInbound(w, r) == 0 {
		a.metrics.ObserveInbound(channelLabel, "ignored")
	}
	a.metrics.ObserveWebhookLatency(channelLabel, time.Since(start).Seconds())
}

func (a *Adapter) dispatch(ctx context.Context, msg ParsedInboundMessage) {
	if a.seen(msg.MessageID) {
		a.logger.Info("whatsapp: duplicate delivery dropped", "message_id", msg.MessageID, "user_id", msg.From)
		a.metrics.ObserveInbound(channelLabel, "duplicate")
		return
	}

	req := conversation.MessageRequest{
		UserID:    msg.From,
		Message:   msg.Text,
		Channel:   conversation.ChannelWhatsApp,
		MessageID: msg.MessageID,
		Metadata: map[string]string{
			metadataPhoneNumber: msg.PhoneNumberID,
		},
	}
	if msg.SenderName != "" {
		req.Metadata[metadataSenderName] = msg.SenderName
	}
	if !msg.Timestamp.IsZero() {
		req.Metadata[metadataReceivedAt] = msg.Timestamp.Format(time.RFC3339)
	}

	if err := a.enqueuer.EnqueueMessage(ctx, "", req, conversation.WithoutJobTracking()); err != nil {
		a.forget(msg.MessageID)
		a.logger.Error("whatsapp: failed to enqueue inbound message", "error", err, "user_id", msg.From, "message_id", msg.MessageID)
		a.metrics.ObserveInbound(channelLabel, "failed")
		return
	}
	a.metrics.ObserveInbound(channelLabel, "accepted")
}

// seen reports whether messageID was delivered within the dedup window and
// records it otherwise. Empty ids are never treated as duplicates.
func (a *Adapter) seen(messageID string) bool {
	if messageID == "" {
		return false
	}
	a.dedupMu.Lock()
	defer a.dedupMu.Unlock()

	now := a.now()
	if ts, ok := a.dedup.Get(messageID); ok {
		if now.Sub(ts) <= a.dedupTTL {
			return true
		}
		a.dedup.Remove(messageID)
	}
	a.dedup.Add(messageID, now)
	return false
}

func (a *Adapter) forget(messageID string) {
	if messageID == "" {
		return
	}
	a.dedupMu.Lock()
	defer a.dedupMu.Unlock()
	a.dedup.Remove(messageID)
}

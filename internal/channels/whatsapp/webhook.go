package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

const (
	maxWebhookBody = 1 << 20
	ackBody        = "EVENT_RECEIVED"
)

// WebhookHandler handles WhatsApp webhook verification and inbound messages.
type WebhookHandler struct {
	verifyToken string
	onMessage   func(ctx context.Context, msg ParsedInboundMessage)
	logger      *logging.Logger
}

// NewWebhookHandler creates a new webhook handler. onMessage is called for
// each parsed text message after the delivery has been acknowledged.
func NewWebhookHandler(verifyToken string, onMessage func(context.Context, ParsedInboundMessage), logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		onMessage:   onMessage,
		logger:      logger,
	}
}

// HandleVerification answers the GET subscription challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound acknowledges a POST delivery and then dispatches its text
// messages. It returns how many messages were dispatched.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) int {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return 0
	}

	// Meta retries anything that is not a fast 200.
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ackBody)

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("whatsapp: invalid webhook payload", "error", err)
		return 0
	}

	messages := ParseWebhookEvent(event)
	if len(messages) == 0 {
		h.logger.Debug("whatsapp: webhook without text messages", "object", event.Object)
		return 0
	}
	if h.onMessage != nil {
		for _, msg := range messages {
			h.onMessage(r.Context(), msg)
		}
	}
	return len(messages)
}

// ParseWebhookEvent extracts the text messages from a webhook event. Status
// callbacks and non-text messages are skipped.
func ParseWebhookEvent(event WebhookEvent) []ParsedInboundMessage {
	var messages []ParsedInboundMessage

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				if m.Text == nil {
					continue
				}
				text := strings.TrimSpace(m.Text.Body)
				if text == "" || m.From == "" {
					continue
				}
				messages = append(messages, ParsedInboundMessage{
					From:          m.From,
					SenderName:    names[m.From],
					MessageID:     m.ID,
					Text:          text,
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					Timestamp:     parseUnix(m.Timestamp),
				})
			}
		}
	}

	return messages
}

func parseUnix(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

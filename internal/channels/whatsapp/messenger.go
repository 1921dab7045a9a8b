package whatsapp

import (
	"context"

	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// Messenger delivers conversation replies as WhatsApp text messages. The
// worker uses it directly; the API process reaches it through the Adapter.
type Messenger struct {
	client *Client
	logger *logging.Logger
}

var _ conversation.ReplyMessenger = (*Messenger)(nil)

// NewMessenger builds a messenger for the configured business number.
func NewMessenger(cfg Config, logger *logging.Logger) *Messenger {
	if logger == nil {
		logger = logging.Default()
	}
	client := NewClient(cfg.PhoneNumberID, cfg.AccessToken)
	client.SetGraphAPIBase(cfg.GraphAPIBase)
	return &Messenger{client: client, logger: logger}
}

// SendReply sends reply.Body to reply.UserID.
func (m *Messenger) SendReply(ctx context.Context, reply conversation.OutboundReply) error {
	resp, err := m.client.SendText(ctx, reply.UserID, reply.Body)
	if err != nil {
		return err
	}
	m.logger.Debug("whatsapp: reply sent", "user_id", reply.UserID, "message_id", resp.MessageID())
	return nil
}

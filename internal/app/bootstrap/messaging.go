package bootstrap

import (
	"strings"

	"github.com/wolfman30/nightlife-concierge/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/conversation"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

// WhatsAppConfig maps application config onto the channel config.
func WhatsAppConfig(cfg *appconfig.Config) whatsapp.Config {
	return whatsapp.Config{
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		VerifyToken:   cfg.WhatsAppVerifyToken,
		GraphAPIBase:  cfg.WhatsAppGraphAPIBase,
	}
}

// BuildReplyMessenger creates the outbound messenger used by workers. It
// returns nil and a reason when WhatsApp credentials are missing; replies then
// stay in the job store.
func BuildReplyMessenger(cfg *appconfig.Config, logger *logging.Logger) (conversation.ReplyMessenger, string) {
	if cfg == nil {
		return nil, "missing config"
	}
	if strings.TrimSpace(cfg.WhatsAppPhoneNumberID) == "" || strings.TrimSpace(cfg.WhatsAppAccessToken) == "" {
		return nil, "WHATSAPP_PHONE_NUMBER_ID or WHATSAPP_ACCESS_TOKEN not set"
	}
	return whatsapp.NewMessenger(WhatsAppConfig(cfg), logger), ""
}

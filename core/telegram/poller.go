package telegram

import (
	"net"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/catchbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeout = 10 * time.Second

// allowedUpdates are the only update kinds the bot handles; Telegram drops
// the rest before delivery.
var allowedUpdates = []string{"message", "callback_query"}

// pollTimeout is the long poll window, also used to size HTTP timeouts.
func pollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll && cfg.Telegram.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultPollTimeout
}

// BuildPoller returns the webhook or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
			SecretToken:    cfg.Webhook.Secret,
			AllowedUpdates: allowedUpdates,
		}
	}
	return &tele.LongPoller{
		Timeout:        pollTimeout(cfg),
		AllowedUpdates: allowedUpdates,
	}
}

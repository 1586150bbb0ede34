package middleware

import (
	"log/slog"
	"time"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const startKey = "update_start"

// LoggerMiddleware builds the update's logging context and writes one
// sampled receipt line. It runs once per update: the global chain and the
// per-route wrappers may both apply it.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, seen := c.Get(startKey).(time.Time); seen {
			return next(c)
		}
		c.Set(startKey, time.Now())
		ctx := tghelpers.BuildContext(c)

		user := c.Sender()
		var userID int64
		if user != nil {
			userID = user.ID
		}
		if logger.ShouldSampleDebug(userID) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := parseCallback(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}

func parseCallback(cb *tele.Callback) (string, string) {
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return callbacks.ParseCallbackData(cb)
}

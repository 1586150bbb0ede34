package middleware

import (
	"log/slog"

	"github.com/m3rciful/catchbot/core/logger"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AccessOptions decides who may run a handler.
type AccessOptions struct {
	// Allow reports whether the sender may proceed; nil allows everyone.
	Allow    func(c tele.Context) bool
	OnReject tele.HandlerFunc
}

// RequireMiddleware runs downstream handlers only for senders accepted by opts.Allow.
func RequireMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Allow == nil || opts.Allow(c) {
				return next(c)
			}
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "access.denied",
				slog.Int64("user_id", userID),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}

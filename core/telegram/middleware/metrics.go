package middleware

import (
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ReplyTallyMiddleware gives the update a reply counter. Helpers that send
// messages bump it, and the handler summary reports it.
func ReplyTallyMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.StoreContext(c, tghelpers.WithTally(tghelpers.BuildContext(c)))
		return next(c)
	}
}

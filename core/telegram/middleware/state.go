package middleware

import (
	"log/slog"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/state"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	flowKey = "fsm_flow"
	stepKey = "fsm_step"
)

// SessionPeek loads the sender's conversation session and records its flow
// and step on the update, both for handler summaries and for every log line
// written with the update's context.
func SessionPeek(store state.Store) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || store == nil {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			sess, err := store.Load(ctx, user.ID)
			switch {
			case err != nil:
				logger.Warn(ctx, logger.ComponentState, "session.peek",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			case sess != nil:
				c.Set(flowKey, sess.Flow)
				c.Set(stepKey, sess.Step)
				tghelpers.StoreContext(c, logger.WithFlow(ctx, sess.Flow, sess.Step))
			}
			return next(c)
		}
	}
}

// SessionFrom returns the flow and step recorded by SessionPeek, if any.
func SessionFrom(c tele.Context) (flow, step string) {
	flow, _ = c.Get(flowKey).(string)
	step, _ = c.Get(stepKey).(string)
	return flow, step
}

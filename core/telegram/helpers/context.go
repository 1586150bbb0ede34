package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/catchbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "update_ctx"

type tallyKey struct{}

// replyTally counts the messages sent while handling one update.
type replyTally struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// StoreContext attaches ctx to the update so later middleware and handlers
// log with the same fields.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// BuildContext returns the update's stored context, creating it with the
// request id and update metadata on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// WithTally returns ctx carrying an empty reply counter. A counter already
// present is kept.
func WithTally(ctx context.Context) context.Context {
	if _, ok := ctx.Value(tallyKey{}).(*replyTally); ok {
		return ctx
	}
	return context.WithValue(ctx, tallyKey{}, &replyTally{})
}

// CountReply records a message sent for the update behind ctx.
func CountReply(ctx context.Context, keyboard bool) {
	t, ok := ctx.Value(tallyKey{}).(*replyTally)
	if !ok {
		return
	}
	t.messages.Add(1)
	if keyboard {
		t.keyboard.Store(true)
	}
}

// Tally returns how many messages were sent for the update and whether any
// of them carried a keyboard.
func Tally(ctx context.Context) (int, bool) {
	t, ok := ctx.Value(tallyKey{}).(*replyTally)
	if !ok {
		return 0, false
	}
	return int(t.messages.Load()), t.keyboard.Load()
}

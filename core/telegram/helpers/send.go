package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the outbound dispatcher used by the helpers. With none
// set, calls run inline.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Call runs a Bot API call on the dispatcher and waits for its final result.
// run may be called more than once.
func Call(ctx context.Context, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	err := disp.Do(ctx, action, run)
	if fallback(ctx, action, err) {
		return run()
	}
	return err
}

// Enqueue schedules a Bot API call without waiting for it.
func Enqueue(ctx context.Context, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	err := disp.Enqueue(ctx, action, run)
	if fallback(ctx, action, err) {
		return run()
	}
	return err
}

func fallback(ctx context.Context, action string, err error) bool {
	if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
		return false
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("op", action),
		slog.String("err", err.Error()),
	)
	return true
}

// SendHTML replies in the update's chat with HTML parse mode and an optional
// keyboard.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	ctx := BuildContext(c)
	opts := htmlOptions(markup)
	return Call(ctx, "send.html", func() error {
		if err := c.Send(text, opts); err != nil {
			return err
		}
		CountReply(ctx, opts.ReplyMarkup != nil)
		return nil
	})
}

// EditOrSendHTML edits the callback's message, or sends a new one for
// plain messages.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	ctx := BuildContext(c)
	opts := htmlOptions(markup)
	return Call(ctx, "edit_or_send.html", func() error {
		if err := c.EditOrSend(text, opts); err != nil {
			return err
		}
		CountReply(ctx, opts.ReplyMarkup != nil)
		return nil
	})
}

func htmlOptions(markup []*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

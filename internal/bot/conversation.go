package bot

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/internal/roster"

	tele "gopkg.in/telebot.v4"
)

// conversation feeds plain messages to the engine.
type conversation struct {
	b *Bot
}

func (cv conversation) InProgress(c tele.Context) bool {
	return cv.b.engine.Active(tghelpers.BuildContext(c), c.Sender().ID)
}

func (cv conversation) Handle(c tele.Context) error {
	in, ok := messageInput(c.Message())
	if !ok {
		return nil
	}
	ctx, uid := tghelpers.BuildContext(c), c.Sender().ID
	err := cv.b.engine.Submit(ctx, uid, in)
	if errors.Is(err, flow.ErrAwaitingConfirm) {
		// a message typed at the review brings the summary back into view
		err = cv.b.engine.PrepareReview(ctx, uid)
	}
	return cv.b.report(c, err)
}

// messageInput converts a message into engine input; ok is false for
// message types no step accepts.
func messageInput(m *tele.Message) (flow.Input, bool) {
	switch {
	case m == nil:
		return flow.Input{}, false
	case m.Photo != nil:
		return flow.Input{Kind: flow.InputPhoto, FileID: m.Photo.FileID}, true
	case m.Location != nil:
		return flow.Input{Kind: flow.InputLocation, Lat: coord(m.Location.Lat), Lng: coord(m.Location.Lng)}, true
	case m.Text != "":
		return flow.Input{Kind: flow.InputText, Text: m.Text}, true
	}
	return flow.Input{}, false
}

// coord widens a Bot API coordinate without float32 noise (55.75 stays 55.75).
func coord(f float32) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'f', -1, 32), 64)
	return v
}

// onFlowAction dispatches buttons rendered by the engine. The callback unique
// is the action and the payload is "flow|step|value".
func (b *Bot) onFlowAction(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	uid := c.Sender().ID
	parts, err := callbacks.PayloadParts(c, "|", 3)
	if err != nil {
		return b.report(c, flow.ErrStaleAction)
	}
	tok, value := flow.Token{Flow: parts[0], Step: parts[1]}, parts[2]

	switch action := callbacks.CallbackKey(c); action {
	case flow.ActionChoice:
		err = b.engine.Submit(ctx, uid, flow.Input{Kind: flow.InputChoice, Text: value, Flow: tok.Flow, Step: tok.Step})
	case flow.ActionSkip:
		err = b.engine.Skip(ctx, uid, tok)
	case flow.ActionCancel:
		return b.cancel(c, tok)
	case flow.ActionConfirm:
		err = b.engine.Confirm(ctx, uid, tok)
	case flow.ActionToggle:
		err = b.engine.Toggle(ctx, uid, tok, value)
	case flow.ActionSelectConfirm:
		_, err = b.engine.ConfirmSelection(ctx, uid, tok)
	default:
		err = flow.ErrStaleAction
	}
	return b.report(c, err)
}

// cancel ends the conversation the button belongs to. A cancel left on a
// prompt of an earlier conversation does not touch the current one.
func (b *Bot) cancel(c tele.Context, tok flow.Token) error {
	ctx := tghelpers.BuildContext(c)
	uid := c.Sender().ID
	sess, err := b.engine.Current(ctx, uid)
	if err != nil {
		return err
	}
	if sess == nil {
		b.dropMessage(c)
		return callbacks.Toast(c, flow.DefaultTexts().Cancelled)
	}
	if sess.Flow != tok.Flow {
		return b.report(c, flow.ErrStaleAction)
	}
	return b.report(c, b.engine.Cancel(ctx, uid))
}

// report turns engine outcomes into user feedback. Expected outcomes are
// handled here; anything else goes back to the router's error summary.
func (b *Bot) report(c tele.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flow.ErrNothingSelected):
		return callbacks.Toast(c, roster.NothingSelectedText)
	case errors.Is(err, flow.ErrNoActiveFlow), errors.Is(err, flow.ErrStaleAction):
		logger.Debug(tghelpers.BuildContext(c), logger.ComponentFlow, "flow.action",
			slog.String("status", "stale"),
			slog.String("cause", err.Error()),
		)
		// buttons of a finished or superseded prompt become inert
		if c.Callback() != nil {
			b.stripControls(c)
		}
		return nil
	case errors.Is(err, flow.ErrInvalidInput), errors.Is(err, flow.ErrIncompleteRecord):
		logger.Debug(tghelpers.BuildContext(c), logger.ComponentFlow, "flow.action",
			slog.String("status", "invalid"),
			slog.String("cause", err.Error()),
		)
		return nil
	case errors.Is(err, flow.ErrPersistence):
		// the engine has already told the user
		logger.Debug(tghelpers.BuildContext(c), logger.ComponentFlow, "flow.action",
			slog.String("status", "fail"),
			slog.String("cause", err.Error()),
		)
		return nil
	}
	return err
}

func (b *Bot) stripControls(c tele.Context) {
	msg := c.Message()
	if msg == nil {
		return
	}
	ctx := tghelpers.BuildContext(c)
	err := tghelpers.Enqueue(ctx, "edit.markup", func() error {
		_, err := c.Bot().EditReplyMarkup(msg, nil)
		return err
	})
	if err != nil {
		logger.Debug(ctx, "tg", "controls.strip", slog.String("err", err.Error()))
	}
}

func (b *Bot) dropMessage(c tele.Context) {
	msg := c.Message()
	if msg == nil {
		return
	}
	ctx := tghelpers.BuildContext(c)
	err := tghelpers.Enqueue(ctx, "delete", func() error {
		return c.Bot().Delete(msg)
	})
	if err != nil {
		logger.Debug(ctx, "tg", "message.delete", slog.String("err", err.Error()))
	}
}

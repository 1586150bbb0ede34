package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/state"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const locationHint = "👇 Или нажмите кнопку, чтобы отправить геолокацию."

var errDetached = errors.New("bot: renderer is not attached to a bot")

// MenuFunc returns the main keyboard for a user.
type MenuFunc func(ctx context.Context, userID int64) *tele.ReplyMarkup

// Renderer shows conversation prompts in private chats. Sends wait for the
// dispatcher because the engine needs the ids of messages carrying controls;
// edits and deletes are queued.
type Renderer struct {
	bot  atomic.Pointer[tele.Bot]
	menu MenuFunc
}

// NewRenderer builds a renderer; Attach must be called before use.
func NewRenderer(menu MenuFunc) *Renderer {
	return &Renderer{menu: menu}
}

// Attach binds the renderer to the running bot.
func (r *Renderer) Attach(b *tele.Bot) {
	r.bot.Store(b)
}

// Render sends p to the user. Photos go first, then the text. Inline
// controls and a reply keyboard cannot share one message, so a location
// button next to controls is offered in a second message.
func (r *Renderer) Render(ctx context.Context, userID int64, p flow.Prompt) ([]state.MessageRef, error) {
	b := r.bot.Load()
	if b == nil {
		return nil, errDetached
	}
	to := tele.ChatID(userID)

	if err := sendPhotos(ctx, b, to, p.Photos); err != nil {
		return nil, err
	}

	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	inline := len(p.Controls) > 0
	switch {
	case inline:
		opts.ReplyMarkup = InlineMarkup(p.Controls)
	case p.LocationButton != "":
		opts.ReplyMarkup = keyboard.LocationRequest(p.LocationButton)
	case p.Menu && r.menu != nil:
		opts.ReplyMarkup = r.menu(ctx, userID)
	}
	var msg *tele.Message
	err := tghelpers.Call(ctx, "send.prompt", func() error {
		sent, err := b.Send(to, p.Text, opts)
		if err != nil {
			return err
		}
		msg = sent
		tghelpers.CountReply(ctx, opts.ReplyMarkup != nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !inline {
		return nil, nil
	}
	if p.LocationButton != "" {
		err := tghelpers.Call(ctx, "send.location_hint", func() error {
			_, err := b.Send(to, locationHint, keyboard.LocationRequest(p.LocationButton))
			return err
		})
		if err != nil {
			logger.Warn(ctx, "tg", "render.location",
				slog.String("err", err.Error()),
			)
		}
	}
	return []state.MessageRef{{ChatID: msg.Chat.ID, MessageID: msg.ID}}, nil
}

func sendPhotos(ctx context.Context, b *tele.Bot, to tele.Recipient, ids []string) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return tghelpers.Call(ctx, "send.photo", func() error {
			_, err := b.Send(to, &tele.Photo{File: tele.File{FileID: ids[0]}})
			return err
		})
	}
	album := make(tele.Album, 0, len(ids))
	for _, id := range ids {
		album = append(album, &tele.Photo{File: tele.File{FileID: id}})
	}
	return tghelpers.Call(ctx, "send.album", func() error {
		_, err := b.SendAlbum(to, album)
		return err
	})
}

// EditControls swaps the inline keyboard of a sent message; nil removes it.
func (r *Renderer) EditControls(ctx context.Context, ref state.MessageRef, controls [][]flow.Control) error {
	b := r.bot.Load()
	if b == nil {
		return errDetached
	}
	var markup *tele.ReplyMarkup
	if len(controls) > 0 {
		markup = InlineMarkup(controls)
	}
	return tghelpers.Enqueue(ctx, "edit.markup", func() error {
		_, err := b.EditReplyMarkup(stored(ref), markup)
		return err
	})
}

// Delete removes a sent message.
func (r *Renderer) Delete(ctx context.Context, ref state.MessageRef) error {
	b := r.bot.Load()
	if b == nil {
		return errDetached
	}
	return tghelpers.Enqueue(ctx, "delete", func() error {
		return b.Delete(stored(ref))
	})
}

func stored(ref state.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

// InlineMarkup encodes controls as callback buttons. The action is the
// callback unique and the payload is "flow|step|value".
func InlineMarkup(rows [][]flow.Control) *tele.ReplyMarkup {
	out := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, c := range row {
			btns = append(btns, keyboard.InlineBtn{Text: c.Label, Unique: c.Action, Data: []string{c.Flow, c.Step, c.Value}})
		}
		out = append(out, btns)
	}
	return keyboard.InlineButtonsRows(out...)
}

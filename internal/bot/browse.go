package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/core/telegram/keyboard"
	"github.com/m3rciful/catchbot/internal/animals"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/service"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the animal list.
const (
	cbAnimalShow    = "animal.show"
	cbAnimalOutcome = "animal.outcome"
)

const outcomeLabel = "📝 Внести результат"

func (b *Bot) onAllAnimals(c tele.Context) error {
	return b.showAnimal(c, animals.Cursor{})
}

func (b *Bot) onMyAnimals(c tele.Context) error {
	return b.showAnimal(c, animals.Cursor{Mine: true})
}

// onAnimalShow navigates to the record named by the pressed cursor.
func (b *Bot) onAnimalShow(c tele.Context) error {
	cur, err := animals.ParseCursor(callbacks.CallbackPayload(c))
	if err != nil || cur.ID == 0 {
		return callbacks.Toast(c, animals.NotFoundText)
	}
	return b.showAnimal(c, cur)
}

// showAnimal sends the card of cur.ID (the newest record when zero) with its
// photos. When reached from a button the previous card and album go away.
func (b *Bot) showAnimal(c tele.Context, cur animals.Cursor) error {
	ctx := tghelpers.BuildContext(c)
	u, ok := b.user(c)
	if !ok {
		return b.reject(c)
	}
	var filter models.AnimalFilter
	if cur.Mine {
		filter.CreatedBy = u.TgID
	}
	page, err := b.animals.Browse(ctx, cur.ID, filter)
	if errors.Is(err, service.ErrNotFound) {
		text := animals.EmptyListText
		if cur.ID != 0 {
			text = animals.NotFoundText
		}
		if c.Callback() != nil {
			return callbacks.Toast(c, text)
		}
		return tghelpers.SendHTML(c, text)
	}
	if err != nil {
		return err
	}

	if c.Callback() != nil {
		b.dropMessage(c)
		b.dropAlbum(ctx, c, cur)
	}
	first, count := b.sendAlbum(ctx, c, page.Record.Photos())
	next := animals.Cursor{Mine: cur.Mine, AlbumFirst: first, AlbumCount: count}
	return tghelpers.SendHTML(c, animals.Card(page.Record, b.loc), cardMarkup(u, page, next))
}

// cardMarkup builds navigation (newer to the left) and, for users allowed to
// edit it, the outcome button.
func cardMarkup(u models.User, page service.Page, cur animals.Cursor) *tele.ReplyMarkup {
	var nav []keyboard.InlineBtn
	if page.Newer != 0 {
		nav = append(nav, keyboard.InlineBtn{Text: "⬅️", Unique: cbAnimalShow, Data: []string{withID(cur, page.Newer).Encode()}})
	}
	nav = append(nav, keyboard.InlineBtn{
		Text:   "№" + strconv.FormatInt(page.Record.ID, 10),
		Unique: cbAnimalShow,
		Data:   []string{withID(cur, page.Record.ID).Encode()},
	})
	if page.Older != 0 {
		nav = append(nav, keyboard.InlineBtn{Text: "➡️", Unique: cbAnimalShow, Data: []string{withID(cur, page.Older).Encode()}})
	}
	rows := [][]keyboard.InlineBtn{nav}
	if service.CanEditOutcome(u, page.Record) {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   outcomeLabel,
			Unique: cbAnimalOutcome,
			Data:   []string{strconv.FormatInt(page.Record.ID, 10)},
		}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

func withID(cur animals.Cursor, id int64) animals.Cursor {
	cur.ID = id
	return cur
}

// sendAlbum sends the record's photos and returns the first message id and
// the number of messages sent.
func (b *Bot) sendAlbum(ctx context.Context, c tele.Context, photos []string) (first, count int) {
	switch len(photos) {
	case 0:
		return 0, 0
	case 1:
		msg, err := c.Bot().Send(c.Recipient(), &tele.Photo{File: tele.File{FileID: photos[0]}})
		if err != nil {
			logger.Warn(ctx, "tg", "album.send", slog.String("err", err.Error()))
			return 0, 0
		}
		return msg.ID, 1
	}
	album := make(tele.Album, 0, len(photos))
	for _, id := range photos {
		album = append(album, &tele.Photo{File: tele.File{FileID: id}})
	}
	msgs, err := c.Bot().SendAlbum(c.Recipient(), album)
	if err != nil || len(msgs) == 0 {
		if err != nil {
			logger.Warn(ctx, "tg", "album.send", slog.String("err", err.Error()))
		}
		return 0, 0
	}
	return msgs[0].ID, len(msgs)
}

func (b *Bot) dropAlbum(ctx context.Context, c tele.Context, cur animals.Cursor) {
	if cur.AlbumCount == 0 || c.Chat() == nil {
		return
	}
	chatID := c.Chat().ID
	for i := 0; i < cur.AlbumCount; i++ {
		msg := tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(cur.AlbumFirst + i)}
		err := tghelpers.Enqueue(ctx, "delete", func() error {
			return c.Bot().Delete(msg)
		})
		if err != nil {
			logger.Debug(ctx, "tg", "album.delete", slog.String("err", err.Error()))
		}
	}
}

// onAnimalOutcome starts the outcome conversation for a record the user may edit.
func (b *Bot) onAnimalOutcome(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return callbacks.Toast(c, animals.NotFoundText)
	}
	rec, err := b.animals.Get(ctx, id)
	if errors.Is(err, service.ErrNotFound) {
		return callbacks.Toast(c, animals.NotFoundText)
	}
	if err != nil {
		return err
	}
	u, ok := b.user(c)
	if !ok || !service.CanEditOutcome(u, rec) {
		return b.reject(c)
	}
	return b.engine.StartWith(ctx, u.TgID, animals.OutcomeFlow, animals.OutcomeSeed(id))
}

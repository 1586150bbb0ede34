package bot

import (
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

const (
	unknownText     = "🤔 Не понимаю. Воспользуйтесь клавиатурой снизу."
	unknownDocument = "📄 Файлы не принимаются, отправьте фото."
	staleButtonText = "Кнопка устарела."
)

var _ ui.FallbackProvider = (*Bot)(nil)

// UnknownText answers messages outside any conversation with the main menu.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		return tghelpers.SendHTML(c, unknownText, b.menu(ctx, c.Sender().ID))
	}
}

func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendHTML(c, unknownDocument)
	}
}

// UnknownCallback disarms buttons nobody handles any more.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		b.stripControls(c)
		return callbacks.Toast(c, staleButtonText)
	}
}

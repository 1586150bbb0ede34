package bot

import (
	"errors"
	"strings"

	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/internal/animals"
	"github.com/m3rciful/catchbot/internal/service"

	tele "gopkg.in/telebot.v4"
)

const (
	welcomeBackText = "И снова здравствуй! 😻"
	welcomeText     = "Добро пожаловать! 😻 Чтобы начать пользоваться сервисом, используй клавиатуру снизу."
	badInviteText   = "Ссылка недействительна 😿"
	nothingToCancel = "Нечего отменять."
)

// onStart greets known users and registers newcomers who bring an invite
// token as the start parameter.
func (b *Bot) onStart(c tele.Context) error {
	if u, ok := b.user(c); ok {
		return tghelpers.SendHTML(c, welcomeBackText, menuFor(u.Role, true))
	}
	token := strings.TrimSpace(c.Message().Payload)
	if token == "" {
		return tghelpers.SendHTML(c, badInviteText)
	}
	u, err := b.invites.Redeem(tghelpers.BuildContext(c), token, c.Sender().ID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return tghelpers.SendHTML(c, badInviteText)
	case errors.Is(err, service.ErrAlreadyRegistered):
		return tghelpers.SendHTML(c, welcomeBackText)
	case err != nil:
		return err
	}
	c.Set(userKey, u)
	return tghelpers.SendHTML(c, welcomeText, menuFor(u.Role, true))
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if !b.engine.Active(ctx, c.Sender().ID) {
		return tghelpers.SendHTML(c, nothingToCancel, b.menu(ctx, c.Sender().ID))
	}
	return b.engine.Cancel(ctx, c.Sender().ID)
}

func (b *Bot) onAddAnimal(c tele.Context) error {
	return b.engine.Start(tghelpers.BuildContext(c), c.Sender().ID, animals.IntakeFlow)
}

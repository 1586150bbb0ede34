package bot

import (
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/core/telegram/keyboard"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/roster"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the user management panel.
const (
	cbUsersPanel  = "users.panel"
	cbUsersList   = "users.list"
	cbUsersInvite = "users.invite"
	cbUsersDelete = "users.delete"
)

func panelMarkup() *tele.ReplyMarkup {
	btns := []keyboard.InlineBtn{{Text: "👋 Пригласить нового пользователя", Unique: cbUsersInvite}}
	lists := map[models.Role]string{
		models.RoleAdmin:   "💼 Список админов",
		models.RoleCatcher: "🔦 Список работников отлова",
		models.RoleGuest:   "👀 Список гостей",
	}
	for _, r := range models.Roles {
		btns = append(btns, keyboard.InlineBtn{Text: lists[r], Unique: cbUsersList, Data: []string{string(r)}})
	}
	return keyboard.InlineButtons(btns)
}

func listMarkup(role models.Role) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "🗑️ Перейти к удалению", Unique: cbUsersDelete, Data: []string{string(role)}}},
		[]keyboard.InlineBtn{{Text: "↩️ Назад", Unique: cbUsersPanel}},
	)
}

// onUsersPanel opens the panel; a conversation in progress is dropped.
func (b *Bot) onUsersPanel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if b.engine.Active(ctx, c.Sender().ID) {
		if err := b.engine.Cancel(ctx, c.Sender().ID); err != nil {
			return err
		}
	}
	if c.Callback() != nil {
		return tghelpers.EditOrSendHTML(c, roster.PanelText, panelMarkup())
	}
	return tghelpers.SendHTML(c, roster.PanelText, panelMarkup())
}

func roleFrom(c tele.Context) (models.Role, bool) {
	r := models.Role(callbacks.CallbackPayload(c))
	return r, r.Valid()
}

// onUsersList shows the users of one role; an empty list only toasts.
func (b *Bot) onUsersList(c tele.Context) error {
	role, ok := roleFrom(c)
	if !ok {
		return callbacks.Toast(c, "")
	}
	text, found, err := b.roster.List(tghelpers.BuildContext(c), role)
	if err != nil {
		return err
	}
	if !found {
		return callbacks.Toast(c, text)
	}
	return tghelpers.EditOrSendHTML(c, text, listMarkup(role))
}

func (b *Bot) onUsersInvite(c tele.Context) error {
	b.dropMessage(c)
	return b.roster.Invite(tghelpers.BuildContext(c), c.Sender().ID)
}

func (b *Bot) onUsersDelete(c tele.Context) error {
	role, ok := roleFrom(c)
	if !ok {
		return callbacks.Toast(c, "")
	}
	started, err := b.roster.BeginDelete(tghelpers.BuildContext(c), c.Sender().ID, role)
	if err != nil {
		return err
	}
	if !started {
		return callbacks.Toast(c, roster.EmptyListText(role))
	}
	b.dropMessage(c)
	return nil
}

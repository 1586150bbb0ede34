// Package roster manages who may use the bot: invitations, per-role lists
// and removal of users.
package roster

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram/format"
	"github.com/m3rciful/catchbot/internal/models"
)

// Conversation names.
const (
	InviteFlow      = "users.invite"
	DeleteSelection = "users.delete"
)

const (
	fieldRole = "role"
	fieldName = "name"
)

// PanelText heads the user management panel.
const PanelText = "👥 <b>Панель управления пользователями</b>"

// Inviter issues invite links.
type Inviter interface {
	Create(ctx context.Context, in models.InviteCreate) (string, error)
}

// Directory lists and removes registered users.
type Directory interface {
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Delete(ctx context.Context, tgID int64) (bool, error)
}

// NewInvite defines the conversation that creates an invite link for a new
// user with a chosen role and display name.
func NewInvite(inv Inviter) *flow.Flow {
	options := make([][]flow.Control, 0, len(models.Roles))
	values := make([]string, 0, len(models.Roles))
	for _, r := range models.Roles {
		options = append(options, []flow.Control{flow.Option(r.Label(), string(r))})
		values = append(values, string(r))
	}

	return &flow.Flow{
		Name: InviteFlow,
		Steps: []flow.Step{
			{
				Name:   fieldRole,
				Accept: flow.InputChoice,
				Prompt: func(flow.View) flow.Prompt {
					return flow.Prompt{Text: "Выберите роль для нового пользователя:", Controls: options}
				},
				Validate: flow.OneOf(values...),
				Next:     fieldName,
			},
			{
				Name:   fieldName,
				Accept: flow.InputText,
				Prompt: func(flow.View) flow.Prompt {
					return flow.Prompt{Text: "Введите имя для нового пользователя. Это имя будет использоваться во всём сервисе."}
				},
				Validate: flow.NonEmptyText(models.MaxNameLen),
				Next:     flow.ReviewStep,
			},
		},
		Review: flow.Review[models.InviteCreate]{
			Build: buildInvite,
			Render: func(in models.InviteCreate) flow.Prompt {
				var l format.Lines
				l.Add(format.Field("Роль", in.Role.Label()))
				l.Add(format.Field("Имя", in.Name))
				l.Break()
				l.Add("Подтвердите данные нового пользователя.")
				return flow.Prompt{Text: l.String()}
			},
			Persist: inv.Create,
			Done: func(in models.InviteCreate, link string) flow.Prompt {
				return flow.Prompt{Text: fmt.Sprintf(
					"✅ Приглашение успешно создано.\nОтошлите эту ссылку пользователю %s: <code>%s</code>",
					format.EscapeHTML(in.Name), format.EscapeHTML(link),
				)}
			},
		},
	}
}

func buildInvite(userID int64, s state.Scratch) (models.InviteCreate, error) {
	role, okRole := s.Get(fieldRole)
	name, okName := s.Get(fieldName)
	if !okRole || !okName {
		return models.InviteCreate{}, fmt.Errorf("roster: invite incomplete")
	}
	in := models.InviteCreate{Role: models.Role(role.Text), Name: name.Text, CreatedBy: userID}
	if err := models.ValidateInvite(in); err != nil {
		return models.InviteCreate{}, err
	}
	return in, nil
}

// NewDelete defines the selection that removes the marked users.
func NewDelete(dir Directory) *flow.Selection {
	return &flow.Selection{
		Name: DeleteSelection,
		Title: func([]state.Item) string {
			return "Выберите пользователей для удаления:"
		},
		Marker: "❌ ",
		Apply: func(ctx context.Context, it state.Item) (bool, error) {
			id, err := strconv.ParseInt(it.ID, 10, 64)
			if err != nil {
				return false, fmt.Errorf("roster: bad user id %q", it.ID)
			}
			return dir.Delete(ctx, id)
		},
		Done: func([]state.Item) flow.Prompt {
			return flow.Prompt{Text: "✅ Пользователи успешно удалены."}
		},
	}
}

// NothingSelectedText answers a removal confirmed without marks.
const NothingSelectedText = "🤷‍♂️ Не выбрано ни одного пользователя."

// EmptyListText is shown instead of an empty role list.
func EmptyListText(role models.Role) string {
	return fmt.Sprintf("🤷‍♂️ Список %s пуст.", role.Plural())
}

// ListText renders the users holding role, numbered from one.
func ListText(role models.Role, users []models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💼 <b>Список %s:</b>", role.Plural())
	for i, u := range users {
		fmt.Fprintf(&b, "\n%d. %s (<code>%d</code>)", i+1, format.EscapeHTML(u.Name), u.TgID)
	}
	return b.String()
}

// Items turns users into selectable entries keyed by Telegram id.
func Items(users []models.User) []state.Item {
	items := make([]state.Item, len(users))
	for i, u := range users {
		items[i] = state.Item{ID: strconv.FormatInt(u.TgID, 10), Label: fmt.Sprintf("%s (%d)", u.Name, u.TgID)}
	}
	return items
}

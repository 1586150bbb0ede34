package bot

import (
	"github.com/m3rciful/catchbot/core/telegram/keyboard"
	"github.com/m3rciful/catchbot/internal/models"

	tele "gopkg.in/telebot.v4"
)

// Main keyboard labels; each is registered as a command alias.
const (
	labelAddAnimal  = "🐶 Добавить животное"
	labelMyAnimals  = "🐾 Мои животные"
	labelAllAnimals = "🐾 Список животных"
	labelUsers      = "👥 Пользователи"
)

// menuRows lays out the main keyboard for role.
func menuRows(role models.Role) [][]string {
	var rows [][]string
	if role.CanRecord() {
		rows = append(rows, []string{labelAddAnimal, labelMyAnimals})
	}
	rows = append(rows, []string{labelAllAnimals})
	if role == models.RoleAdmin {
		rows = append(rows, []string{labelUsers})
	}
	return rows
}

// menuFor returns the main keyboard, or removes it for strangers.
func menuFor(role models.Role, ok bool) *tele.ReplyMarkup {
	if !ok {
		return keyboard.RemoveKeyboard()
	}
	return keyboard.ReplyButtons(menuRows(role)...)
}

package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const answeredKey = "cb_answered"

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// CallbackKey returns cb.Unique if present; otherwise parses from Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}

// CallbackPayload returns payload (after '|') parsed from Data.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	// prefer cb.Data since cb.Unique may be empty in generic OnCallback
	_, payload := ParseCallbackData(cb)
	return payload
}

// Toast answers the callback query with a short notification.
// Telegram accepts a single answer per query, so the router skips its own.
func Toast(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// Answered reports whether a handler already answered the callback query.
func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}

package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 parses callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	p := CallbackPayload(c)
	return strconv.ParseInt(p, 10, 64)
}

// PayloadParts splits the callback payload into exactly n parts using sep.
func PayloadParts(c tele.Context, sep string, n int) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.SplitN(p, sep, n)
	if len(parts) != n {
		return nil, strconv.ErrSyntax
	}
	return parts, nil
}

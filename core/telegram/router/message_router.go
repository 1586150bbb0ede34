package router

import (
	"time"

	tg "github.com/m3rciful/catchbot/core/telegram"
	"github.com/m3rciful/catchbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives messages while the sender is in the middle of a flow.
type Conversation interface {
	InProgress(c tele.Context) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for messages nobody expects.
type MessageOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownMedia    tele.HandlerFunc
	UnknownDocument tele.HandlerFunc

	// IsAdmin gates menu labels bound to AdminOnly commands.
	IsAdmin       func(c tele.Context) bool
	OnAdminReject tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo, location and document updates.
// Menu labels registered as command aliases win over an active conversation so
// the main keyboard keeps working mid-flow.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	admin := middleware.RequireMiddleware(middleware.AccessOptions{
		Allow:    opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})
	inFlow := func(c tele.Context) bool {
		return conv != nil && c.Sender() != nil && conv.InProgress(c)
	}

	text := func(c tele.Context) error {
		start := time.Now()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				h := cmd.Handler
				if cmd.AdminOnly {
					h = admin(h)
				}
				return handleWithSummary(c, name, start, "", "", func() error {
					return h(c)
				})
			}
		}

		if inFlow(c) {
			return handleWithSummary(c, "flow.text", start, "", "", func() error {
				return conv.Handle(c)
			})
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	media := func(kind string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if inFlow(c) {
				return handleWithSummary(c, "flow."+kind, start, "", "", func() error {
					return conv.Handle(c)
				})
			}
			if opts.UnknownMedia != nil {
				return handleWithSummary(c, "unexpected_"+kind, start, "", "", func() error {
					return opts.UnknownMedia(c)
				})
			}
			logHandlerSummary(c, "unexpected_"+kind, start, "skip", "ok", nil)
			return nil
		}
	}

	doc := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnPhoto, Handler: wrap(media("photo"))},
		{Endpoint: tele.OnLocation, Handler: wrap(media("location"))},
		{Endpoint: tele.OnDocument, Handler: wrap(doc)},
	}
}

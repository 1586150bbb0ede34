package router

import (
	"github.com/m3rciful/catchbot/core/logger"
	tg "github.com/m3rciful/catchbot/core/telegram"
	"github.com/m3rciful/catchbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	// IsAdmin gates commands marked AdminOnly.
	IsAdmin       func(c tele.Context) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	admin := middleware.RequireMiddleware(middleware.AccessOptions{
		Allow:    opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = admin(h)
		}
		h = middleware.LoggerMiddleware(h)
		h = middleware.RecoverMiddleware(h)
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

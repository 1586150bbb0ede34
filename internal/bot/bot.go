// Package bot connects the registry's conversations and services to
// Telegram: commands, menu buttons, callbacks and the prompt renderer.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram"
	"github.com/m3rciful/catchbot/core/telegram/callbacks"
	"github.com/m3rciful/catchbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	"github.com/m3rciful/catchbot/core/telegram/middleware"
	"github.com/m3rciful/catchbot/core/telegram/router"
	"github.com/m3rciful/catchbot/internal/animals"
	"github.com/m3rciful/catchbot/internal/config"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/roster"
	"github.com/m3rciful/catchbot/internal/service"

	tele "gopkg.in/telebot.v4"
)

const (
	rejectText  = "⛔ Недостаточно прав."
	limitedText = "⏳ Не так быстро."
	userKey     = "catch_user"
)

// Deps are the collaborators the bot is built from.
type Deps struct {
	Config   *config.Config
	Sessions state.Store
	Users    *service.UserService
	Invites  *service.InviteService
	Animals  *service.AnimalService
	Clock    clock.Clock
}

// Bot owns the conversation engine and the Telegram handlers.
type Bot struct {
	cfg      *config.Config
	loc      *time.Location
	sessions state.Store
	users    *service.UserService
	invites  *service.InviteService
	animals  *service.AnimalService
	engine   *flow.Engine
	render   *Renderer
	roster   *roster.Manager
	reg      *telegram.Registry
}

// New registers the conversations and handlers.
func New(d Deps) (*Bot, error) {
	if d.Config == nil || d.Sessions == nil || d.Users == nil || d.Invites == nil || d.Animals == nil {
		return nil, errors.New("bot: missing dependency")
	}
	b := &Bot{
		cfg:      d.Config,
		loc:      d.Config.Location(),
		sessions: d.Sessions,
		users:    d.Users,
		invites:  d.Invites,
		animals:  d.Animals,
		reg:      telegram.NewRegistry(),
	}
	b.render = NewRenderer(b.menu)
	b.engine = flow.New(flow.Options{
		Store:    d.Sessions,
		Renderer: b.render,
		Clock:    d.Clock,
		TTL:      d.Config.Session.TTL,
	})
	if err := b.engine.Register(animals.NewIntake(d.Animals, b.loc)); err != nil {
		return nil, err
	}
	if err := b.engine.Register(animals.NewOutcome(d.Animals, b.loc)); err != nil {
		return nil, err
	}
	m, err := roster.NewManager(b.engine, d.Users, d.Invites)
	if err != nil {
		return nil, err
	}
	b.roster = m
	if err := b.registerHandlers(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bot) registerHandlers() error {
	recorder := b.require(models.Role.CanRecord)
	member := b.require(func(models.Role) bool { return true })

	b.reg.RegisterCommand("/start", commands.Command{Handler: b.onStart, Description: "Начать работу"})
	b.reg.RegisterCommand("/cancel", commands.Command{Handler: b.onCancel, Description: "Отменить текущее действие"})
	b.reg.RegisterCommand("/add", commands.Command{
		Handler:     recorder(b.onAddAnimal),
		Description: "Добавить животное",
		Aliases:     []string{labelAddAnimal},
	})
	b.reg.RegisterCommand("/mine", commands.Command{
		Handler:     recorder(b.onMyAnimals),
		Description: "Мои животные",
		Aliases:     []string{labelMyAnimals},
	})
	b.reg.RegisterCommand("/animals", commands.Command{
		Handler:     member(b.onAllAnimals),
		Description: "Список животных",
		Aliases:     []string{labelAllAnimals},
	})
	b.reg.RegisterCommand("/users", commands.Command{
		Handler:     b.onUsersPanel,
		Description: "Управление пользователями",
		AdminOnly:   true,
		Aliases:     []string{labelUsers},
	})

	admin := b.require(func(r models.Role) bool { return r == models.RoleAdmin })
	handlers := map[string]tele.HandlerFunc{
		flow.ActionChoice:        b.onFlowAction,
		flow.ActionSkip:          b.onFlowAction,
		flow.ActionCancel:        b.onFlowAction,
		flow.ActionConfirm:       b.onFlowAction,
		flow.ActionToggle:        b.onFlowAction,
		flow.ActionSelectConfirm: b.onFlowAction,
		cbAnimalShow:             member(b.onAnimalShow),
		cbAnimalOutcome:          recorder(b.onAnimalOutcome),
		cbUsersPanel:             admin(b.onUsersPanel),
		cbUsersList:              admin(b.onUsersList),
		cbUsersInvite:            admin(b.onUsersInvite),
		cbUsersDelete:            admin(b.onUsersDelete),
	}
	for key, h := range handlers {
		if err := b.reg.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("bot: register callback %s: %w", key, err)
		}
	}
	b.reg.SetCallbackNotFound(b.UnknownCallback())
	b.reg.SetTextFallback(b.UnknownText())
	return nil
}

// TelegramRunOptions assembles the runtime: shared middlewares, session
// peeking for handler logs, and the command, callback and message routes.
func (b *Bot) TelegramRunOptions() (telegram.RunOptions, error) {
	core := b.cfg.CoreConfig()
	mws := telegram.DefaultMiddlewares(core, func(c tele.Context) error {
		return callbacks.Toast(c, limitedText)
	})
	mws = append(mws, telegram.Middleware{Name: "session_peek", Use: middleware.SessionPeek(b.sessions)})

	routes := router.CommandRoutes(b.reg, router.CommandRouteOptions{
		IsAdmin:       b.isAdmin,
		OnAdminReject: b.reject,
	})
	routes = append(routes, router.CallbackRoute(b.reg, router.CallbackOptions{NotFound: b.UnknownCallback()}))
	routes = append(routes, router.MessageRoutes(conversation{b: b}, b.reg, router.MessageOptions{
		UnknownMedia:    b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
		IsAdmin:         b.isAdmin,
		OnAdminReject:   b.reject,
	})...)

	return telegram.RunOptions{
		Config:      core,
		Registry:    b.reg,
		Middlewares: mws,
		Routes:      routes,
		OnStart: func(_ context.Context, rt telegram.Runtime) error {
			b.render.Attach(rt.Bot)
			return nil
		},
	}, nil
}

// user returns the registered sender, cached for the rest of the update.
func (b *Bot) user(c tele.Context) (models.User, bool) {
	if u, ok := c.Get(userKey).(models.User); ok {
		return u, true
	}
	if c.Sender() == nil {
		return models.User{}, false
	}
	u, err := tghelpers.CurrentUser[models.User](tghelpers.BuildContext(c), b.users, c.Sender().ID)
	if err != nil {
		return models.User{}, false
	}
	c.Set(userKey, u)
	return u, true
}

func (b *Bot) isAdmin(c tele.Context) bool {
	u, ok := b.user(c)
	return ok && u.Role == models.RoleAdmin
}

// require lets handlers run only for registered users whose role passes allow.
func (b *Bot) require(allow func(models.Role) bool) tele.MiddlewareFunc {
	return middleware.RequireMiddleware(middleware.AccessOptions{
		Allow: func(c tele.Context) bool {
			u, ok := b.user(c)
			return ok && allow(u.Role)
		},
		OnReject: b.reject,
	})
}

func (b *Bot) reject(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Toast(c, rejectText)
	}
	return tghelpers.SendHTML(c, rejectText)
}

// menu is the renderer's source of main keyboards.
func (b *Bot) menu(ctx context.Context, userID int64) *tele.ReplyMarkup {
	role, ok := b.users.Role(ctx, userID)
	return menuFor(role, ok)
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/catchbot/core/config"
	"github.com/m3rciful/catchbot/core/logger"
	tghelpers "github.com/m3rciful/catchbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/catchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(cfg)
	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(pollTimeout(cfg)),
		OnError: func(err error, c tele.Context) {
			lctx := context.Background()
			if c != nil {
				lctx = tghelpers.BuildContext(c)
			}
			logger.Error(lctx, "tg", "tg.handler_error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := tgsender.NewDispatcher(opts.DispatcherOptions)
	tghelpers.SetDispatcher(dispatcher)
	release := func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
		logger.Info(context.Background(), "tg.sender", "sender.stop",
			slog.Uint64("failed_jobs", dispatcher.Failed()),
		)
	}

	rt := Runtime{Bot: bot, Registry: reg}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Bool("secret", p.SecretToken != ""),
			slog.Duration("duration", buildTook),
		)
	case *tele.LongPoller:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
			slog.Duration("duration", buildTook),
		)
		// a webhook left over from a previous deployment blocks getUpdates
		if err := bot.RemoveWebhook(); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	release()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
		return runErr
	}

	return nil
}

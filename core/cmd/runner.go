// Package cmd holds the process lifecycle shared by bot binaries: load the
// config, bootstrap the app, run the bot until a signal arrives.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/catchbot/core/buildinfo"
	coreconfig "github.com/m3rciful/catchbot/core/config"
	"github.com/m3rciful/catchbot/core/logger"
	coretelegram "github.com/m3rciful/catchbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// Signals default to SIGINT and SIGTERM.
	Signals        []os.Signal
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the Telegram app, and runs it until
// one of the signals arrives.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	if opts.ConfigPath == "" {
		return errors.New("cmd: config path is empty")
	}

	log.Printf("loading config: %s", opts.ConfigPath)
	cfg, err := opts.LoadConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if serr := shutdownLogger(); serr != nil {
			log.Printf("logger shutdown error: %v", serr)
		}
	}()

	startedAt := time.Now()
	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}

	prevStart, prevStop := runOpts.OnStart, runOpts.OnStop
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "app.ready",
			slog.String("status", "ok"),
			slog.String("version", buildinfo.Version),
			slog.Duration("startup_duration", time.Since(startedAt)),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "app.shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/catchbot/core/config"
	coretelegram "github.com/m3rciful/catchbot/core/telegram"
)

type testConfig struct{ core *coreconfig.Config }

func (c testConfig) CoreConfig() *coreconfig.Config { return c.core }

type testApp struct{ stopped *bool }

func (a testApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStop: func(context.Context, coretelegram.Runtime) error {
			*a.stopped = true
			return nil
		},
	}, nil
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	var (
		loaded, stopped, flushed bool
	)
	err := Run(Options{
		ConfigPath: "bot.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path == "bot.yaml"
			return testConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return testApp{stopped: &stopped}, nil
		},
		ShutdownLogger: func() error {
			flushed = true
			return nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !loaded || !stopped || !flushed {
		t.Fatalf("loaded=%v stopped=%v flushed=%v", loaded, stopped, flushed)
	}
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	boom := errors.New("db down")
	ran := false
	err := Run(Options{
		ConfigPath: "bot.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return testConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return nil, boom
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(context.Context, coretelegram.RunOptions) error {
			ran = true
			return nil
		},
	})
	if !errors.Is(err, boom) || ran {
		t.Fatalf("err = %v, ran = %v", err, ran)
	}
}

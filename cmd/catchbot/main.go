// Command catchbot runs the stray animal catching registry bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/m3rciful/catchbot/core/bootstrap"
	"github.com/m3rciful/catchbot/core/buildinfo"
	"github.com/m3rciful/catchbot/core/clock"
	corecmd "github.com/m3rciful/catchbot/core/cmd"
	coreconfig "github.com/m3rciful/catchbot/core/config"
	coredatabase "github.com/m3rciful/catchbot/core/database"
	"github.com/m3rciful/catchbot/core/state"
	"github.com/m3rciful/catchbot/core/telegram"
	"github.com/m3rciful/catchbot/internal/bot"
	"github.com/m3rciful/catchbot/internal/config"
	"github.com/m3rciful/catchbot/internal/repository"
	"github.com/m3rciful/catchbot/internal/service"
)

const configEnv = "CONFIG_PATH"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("catchbot", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML config (default $"+configEnv+" or config.yaml)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the config")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("catchbot %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return nil
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}
	path := *configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		path = "config.yaml"
	}

	return corecmd.Run(corecmd.Options{
		ConfigPath: path,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cc corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := cc.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cc)
			}
			return build(context.Background(), cfg)
		},
	})
}

// app closes the databases once the bot stops.
type app struct {
	*bot.Bot
	closers []*sqlx.DB
}

func (a *app) TelegramRunOptions() (telegram.RunOptions, error) {
	opts, err := a.Bot.TelegramRunOptions()
	if err != nil {
		return opts, err
	}
	opts.OnStop = func(context.Context, telegram.Runtime) error {
		var errs []error
		for _, db := range a.closers {
			errs = append(errs, db.Close())
		}
		return errors.Join(errs...)
	}
	return opts, nil
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	clk := clock.Real()
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders: []bootstrap.Seeder{
			bootstrap.SeederFunc{
				Label: "admins",
				Fn: func(ctx context.Context, db *sqlx.DB) error {
					users := service.NewUserService(repository.New(db, clk).Users)
					return users.SeedAdmins(ctx, cfg.Telegram.AdminIDs)
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	a := &app{closers: []*sqlx.DB{res.DB}}

	sessions, sessionDB, err := openSessions(ctx, cfg.CoreConfig().Session, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	if sessionDB != nil {
		a.closers = append(a.closers, sessionDB)
	}

	repos := repository.New(res.DB, clk)
	a.Bot, err = bot.New(bot.Deps{
		Config:   cfg,
		Sessions: sessions,
		Users:    service.NewUserService(repos.Users),
		Invites:  service.NewInviteService(repos.Invites, repos.Users, cfg.Telegram.Username),
		Animals:  service.NewAnimalService(repos.Animals),
		Clock:    clk,
	})
	if err != nil {
		for _, db := range a.closers {
			_ = db.Close()
		}
		return nil, err
	}
	return a, nil
}

// openSessions picks the conversation store. The postgres table comes from
// migrations; a sqlite file gets its schema on open.
func openSessions(ctx context.Context, cfg coreconfig.SessionConfig, main *sqlx.DB) (state.Store, *sqlx.DB, error) {
	switch cfg.Backend {
	case coreconfig.SessionMemory:
		return state.NewMemoryStore(), nil, nil
	case coreconfig.SessionSQLite:
		db, err := coredatabase.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store := state.NewSQLStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db, nil
	}
	return state.NewSQLStore(main), nil, nil
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/catchbot/core/config"
	coredatabase "github.com/m3rciful/catchbot/core/database"
	"github.com/m3rciful/catchbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Seeders  []Seeder

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, applies migrations
// and runs seeders in order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	for _, s := range opts.Seeders {
		start := time.Now()
		if err := s.Seed(ctx, db); err != nil {
			logger.SEED.Error("seed failed",
				slog.String("event", "seed"),
				slog.String("seeder", s.Name()),
				slog.String("err", err.Error()),
			)
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: seeder %s: %w", s.Name(), err)
		}
		logger.SEED.Info("seed applied",
			slog.String("event", "seed"),
			slog.String("seeder", s.Name()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}

	return &Result{DB: db}, nil
}

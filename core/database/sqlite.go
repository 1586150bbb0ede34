package database

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/catchbot/core/logger"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// OpenSQLite opens a local sqlite database file. A single connection is kept
// so writers never contend for the file lock.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", "sqlite"),
		slog.String("path", path),
	)
	return db, nil
}

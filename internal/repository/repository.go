// Package repository stores users, invites and animal records with sqlx.
// Queries are written with '?' placeholders and rebound for the driver, so
// the same code runs on postgres in production and sqlite in tests.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/clock"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// Repositories groups the stores used by the services.
type Repositories struct {
	Users   *UserRepo
	Invites *InviteRepo
	Animals *AnimalRepo
}

// New builds every repository over one database handle.
func New(db *sqlx.DB, clk clock.Clock) *Repositories {
	if clk == nil {
		clk = clock.Real()
	}
	return &Repositories{
		Users:   &UserRepo{db: db, clock: clk},
		Invites: &InviteRepo{db: db, clock: clk},
		Animals: &AnimalRepo{db: db, clock: clk},
	}
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("repository: %s: %w", op, err)
}

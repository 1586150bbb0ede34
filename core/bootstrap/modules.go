package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder loads reference data once the database is migrated.
type Seeder interface {
	Name() string
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc struct {
	Label string
	Fn    func(ctx context.Context, db *sqlx.DB) error
}

// Name returns the label used in seed logs.
func (f SeederFunc) Name() string { return f.Label }

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error {
	return f.Fn(ctx, db)
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/internal/models"
)

// UserRepo persists registered users.
type UserRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

const userColumns = `id, tg_id, name, role, created_at, updated_at`

// GetByTgID returns the user with the given Telegram id.
func (r *UserRepo) GetByTgID(ctx context.Context, tgID int64) (models.User, error) {
	var u models.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE tg_id = ?`)
	if err := r.db.GetContext(ctx, &u, q, tgID); err != nil {
		return models.User{}, notFound("get user", err)
	}
	return u, nil
}

// ListByRole returns users holding role, oldest first.
func (r *UserRepo) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var out []models.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE role = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, q, role); err != nil {
		return nil, fmt.Errorf("repository: list users: %w", err)
	}
	return out, nil
}

// EnsureAdmin creates an administrator account unless the Telegram id is
// already registered. It reports whether a row was inserted.
func (r *UserRepo) EnsureAdmin(ctx context.Context, tgID int64, name string) (bool, error) {
	now := r.clock.Now().UTC()
	q := r.db.Rebind(`INSERT INTO users (tg_id, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (tg_id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, q, tgID, name, models.RoleAdmin, now, now)
	if err != nil {
		return false, fmt.Errorf("repository: ensure admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: ensure admin: %w", err)
	}
	return n > 0, nil
}

// Delete removes the user; it reports whether a row existed.
func (r *UserRepo) Delete(ctx context.Context, tgID int64) (bool, error) {
	q := r.db.Rebind(`DELETE FROM users WHERE tg_id = ?`)
	res, err := r.db.ExecContext(ctx, q, tgID)
	if err != nil {
		return false, fmt.Errorf("repository: delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: delete user: %w", err)
	}
	return n > 0, nil
}

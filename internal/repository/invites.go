package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catchbot/core/clock"
	"github.com/m3rciful/catchbot/internal/models"
)

// InviteRepo persists one-time registration links.
type InviteRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// Create stores a new invite under token and returns its id.
func (r *InviteRepo) Create(ctx context.Context, token string, in models.InviteCreate) (int64, error) {
	now := r.clock.Now().UTC()
	var id int64
	q := r.db.Rebind(`INSERT INTO invites (token, role, name, expired, created_by, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, q, token, in.Role, in.Name, in.CreatedBy, now, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("repository: create invite: %w", err)
	}
	return id, nil
}

// Redeem expires the invite and registers tgID with its role and name in a
// single transaction. An unknown or already used token yields ErrNotFound.
func (r *InviteRepo) Redeem(ctx context.Context, token string, tgID int64) (models.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("repository: redeem invite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.clock.Now().UTC()
	var inv models.Invite
	q := tx.Rebind(`UPDATE invites SET expired = TRUE, updated_at = ?
		WHERE token = ? AND expired = FALSE
		RETURNING id, token, role, name, expired, created_by, created_at, updated_at`)
	if err := tx.GetContext(ctx, &inv, q, now, token); err != nil {
		return models.User{}, notFound("redeem invite", err)
	}

	var u models.User
	q = tx.Rebind(`INSERT INTO users (tg_id, name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + userColumns)
	if err := tx.GetContext(ctx, &u, q, tgID, inv.Name, inv.Role, now, now); err != nil {
		return models.User{}, fmt.Errorf("repository: register invited user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("repository: redeem invite: %w", err)
	}
	return u, nil
}

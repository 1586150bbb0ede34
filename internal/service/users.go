// Package service holds the application's use cases on top of the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/repository"
)

const (
	componentUsers   = "service.users"
	componentInvites = "service.invites"
	componentAnimals = "service.animals"
)

// ErrNotFound is returned for unknown users, invites and records.
var ErrNotFound = repository.ErrNotFound

// DefaultAdminName is given to administrators created from configuration.
const DefaultAdminName = "Администратор"

// UserService manages registered users.
type UserService struct {
	repo *repository.UserRepo
}

// NewUserService wraps the user repository.
func NewUserService(repo *repository.UserRepo) *UserService {
	return &UserService{repo: repo}
}

// GetUserByTelegramID returns the registered user behind a Telegram account.
func (s *UserService) GetUserByTelegramID(ctx context.Context, tgID int64) (models.User, error) {
	u, err := s.repo.GetByTgID(ctx, tgID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error(ctx, componentUsers, "user.get",
				slog.Int64("tg_id", tgID),
				slog.String("err", err.Error()),
			)
		}
		return models.User{}, err
	}
	return u, nil
}

// Role returns the user's role; ok is false for strangers and lookup failures.
func (s *UserService) Role(ctx context.Context, tgID int64) (models.Role, bool) {
	u, err := s.GetUserByTelegramID(ctx, tgID)
	if err != nil {
		return "", false
	}
	return u.Role, true
}

// ListByRole returns every user holding role.
func (s *UserService) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("service: unknown role %q", role)
	}
	return s.repo.ListByRole(ctx, role)
}

// Delete removes a user; it reports whether one was removed.
func (s *UserService) Delete(ctx context.Context, tgID int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, tgID)
	if err != nil {
		logger.Error(ctx, componentUsers, "user.delete",
			slog.Int64("tg_id", tgID),
			slog.String("err", err.Error()),
		)
		return false, err
	}
	logger.Info(ctx, componentUsers, "user.delete",
		slog.Int64("tg_id", tgID),
		slog.Bool("removed", ok),
	)
	return ok, nil
}

// SeedAdmins registers the configured administrators. Accounts that already
// exist keep their name and role.
func (s *UserService) SeedAdmins(ctx context.Context, ids []int64) error {
	var created int
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		ok, err := s.repo.EnsureAdmin(ctx, id, DefaultAdminName)
		if err != nil {
			return fmt.Errorf("service: seed admin %d: %w", id, err)
		}
		if ok {
			created++
		}
	}
	logger.Info(ctx, componentUsers, "admins.seed",
		slog.Int("configured", len(ids)),
		slog.Int("created", created),
	)
	return nil
}

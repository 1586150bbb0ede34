package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/catchbot/core/logger"
	"github.com/m3rciful/catchbot/internal/models"
	"github.com/m3rciful/catchbot/internal/repository"
)

// ErrAlreadyRegistered is returned when an existing user opens an invite.
var ErrAlreadyRegistered = errors.New("service: user already registered")

// InviteService issues and redeems invite links.
type InviteService struct {
	repo        *repository.InviteRepo
	users       *repository.UserRepo
	botUsername string
	newToken    func() string
}

// NewInviteService builds the service; botUsername is used in deep links.
func NewInviteService(repo *repository.InviteRepo, users *repository.UserRepo, botUsername string) *InviteService {
	return &InviteService{
		repo:        repo,
		users:       users,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		newToken:    newInviteToken,
	}
}

// newInviteToken returns 32 hex characters, which fits the 64-byte limit of
// Telegram's start parameter.
func newInviteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create stores a new invite and returns the link to hand out.
func (s *InviteService) Create(ctx context.Context, in models.InviteCreate) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := models.ValidateInvite(in); err != nil {
		return "", err
	}
	token := s.newToken()
	if _, err := s.repo.Create(ctx, token, in); err != nil {
		logger.Error(ctx, componentInvites, "invite.create",
			slog.String("role", string(in.Role)),
			slog.String("err", err.Error()),
		)
		return "", err
	}
	logger.Info(ctx, componentInvites, "invite.create",
		slog.String("role", string(in.Role)),
		slog.Int64("created_by", in.CreatedBy),
	)
	return s.Link(token), nil
}

// Link builds the deep link that starts the bot with token.
func (s *InviteService) Link(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, token)
}

// Redeem registers tgID with the invite's role and name and expires the
// invite. Unknown and used tokens yield ErrNotFound.
func (s *InviteService) Redeem(ctx context.Context, token string, tgID int64) (models.User, error) {
	if _, err := s.users.GetByTgID(ctx, tgID); err == nil {
		return models.User{}, ErrAlreadyRegistered
	} else if !errors.Is(err, ErrNotFound) {
		return models.User{}, err
	}
	u, err := s.repo.Redeem(ctx, token, tgID)
	if err != nil {
		level := logger.Warn
		if !errors.Is(err, ErrNotFound) {
			level = logger.Error
		}
		level(ctx, componentInvites, "invite.redeem",
			slog.Int64("tg_id", tgID),
			slog.String("err", err.Error()),
		)
		return models.User{}, err
	}
	logger.Info(ctx, componentInvites, "invite.redeem",
		slog.Int64("tg_id", tgID),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

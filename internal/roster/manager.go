package roster

import (
	"context"
	"fmt"

	"github.com/m3rciful/catchbot/core/flow"
	"github.com/m3rciful/catchbot/internal/models"
)

// Manager runs the user management panel on top of the conversation engine.
type Manager struct {
	engine *flow.Engine
	dir    Directory
}

// NewManager registers the invite conversation and the removal selection.
func NewManager(engine *flow.Engine, dir Directory, inv Inviter) (*Manager, error) {
	if err := engine.Register(NewInvite(inv)); err != nil {
		return nil, err
	}
	if err := engine.RegisterSelection(NewDelete(dir)); err != nil {
		return nil, err
	}
	return &Manager{engine: engine, dir: dir}, nil
}

// List renders the users holding role. ok is false when there are none, in
// which case text is the short notice to show instead.
func (m *Manager) List(ctx context.Context, role models.Role) (text string, ok bool, err error) {
	users, err := m.dir.ListByRole(ctx, role)
	if err != nil {
		return "", false, fmt.Errorf("roster: list %s: %w", role, err)
	}
	if len(users) == 0 {
		return EmptyListText(role), false, nil
	}
	return ListText(role, users), true, nil
}

// Invite starts the invite conversation for an administrator.
func (m *Manager) Invite(ctx context.Context, adminID int64) error {
	return m.engine.Start(ctx, adminID, InviteFlow)
}

// BeginDelete offers the current users holding role for removal. ok is false
// when the list is empty and nothing was started.
func (m *Manager) BeginDelete(ctx context.Context, adminID int64, role models.Role) (ok bool, err error) {
	users, err := m.dir.ListByRole(ctx, role)
	if err != nil {
		return false, fmt.Errorf("roster: list %s: %w", role, err)
	}
	if len(users) == 0 {
		return false, nil
	}
	if err := m.engine.BeginSelection(ctx, adminID, DeleteSelection, Items(users)); err != nil {
		return false, err
	}
	return true, nil
}

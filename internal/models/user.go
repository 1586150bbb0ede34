package models

import "time"

// Role is a user's access level.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCatcher Role = "CATCHER"
	RoleGuest   Role = "GUEST"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleCatcher, RoleGuest}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCatcher, RoleGuest:
		return true
	}
	return false
}

// Label is the button caption used when picking a role.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "💼 Админ"
	case RoleCatcher:
		return "🔦 Работник отлова"
	case RoleGuest:
		return "👀 Гость"
	}
	return string(r)
}

// Plural is the genitive plural used in list headers ("Список гостей").
func (r Role) Plural() string {
	switch r {
	case RoleAdmin:
		return "администраторов"
	case RoleCatcher:
		return "работников отлова"
	case RoleGuest:
		return "гостей"
	}
	return string(r)
}

// CanRecord reports whether the role may add animal records.
func (r Role) CanRecord() bool {
	return r == RoleAdmin || r == RoleCatcher
}

// User is a registered bot user.
type User struct {
	ID        int64     `db:"id"`
	TgID      int64     `db:"tg_id"`
	Name      string    `db:"name"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Invite is a one-time registration link.
type Invite struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	Role      Role      `db:"role"`
	Name      string    `db:"name"`
	Expired   bool      `db:"expired"`
	CreatedBy int64     `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// InviteCreate is the input for a new invite; the token is assigned by the service.
type InviteCreate struct {
	Role      Role
	Name      string
	CreatedBy int64
}

package session

import (
	"errors"
	"time"
)

// Role is one of the fixed access levels the portal recognises.
type Role string

const (
	RoleUser       Role = "user"
	RoleReporter   Role = "reporter"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a stored string onto a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleReporter, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	}
	return "", false
}

// User is the identity snapshot held client-side for the lifetime of a
// session. It is not a source of truth; the account record lives in
// postgres and this snapshot is replaced on every refresh.
type User struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`

	// SessionID and ExpiresAt travel inside the signed token, never in
	// the script-visible user cookie.
	SessionID string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Expired reports whether the snapshot's expiry lies in the past.
func (u *User) Expired(now time.Time) bool {
	return u != nil && !u.ExpiresAt.IsZero() && u.ExpiresAt.Before(now)
}

// ErrIncomplete is returned when Set is called without both a user and a
// token. User and token are written as a pair or not at all.
var ErrIncomplete = errors.New("session: user and token are set as a pair")

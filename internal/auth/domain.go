package auth

import (
	"time"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
)

// Account is the authoritative portal user record. The session layer
// only ever holds the snapshot derived from it.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         session.Role
	AvatarURL    string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot derives the client-side identity view. Session id and expiry
// are assigned when the token is issued.
func (a *Account) Snapshot() session.User {
	return session.User{
		ID:     a.ID,
		Email:  a.Email,
		Name:   a.Name,
		Role:   a.Role,
		Avatar: a.AvatarURL,
	}
}

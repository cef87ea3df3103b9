package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, limit int) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT id, email, name, role, COALESCE(avatar_url, ''), password_hash, is_active, created_at, updated_at
FROM accounts WHERE email = $1`
	var (
		acct Account
		role string
	)
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&acct.ID, &acct.Email, &acct.Name, &role, &acct.AvatarURL,
		&acct.PasswordHash, &acct.IsActive, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	parsed, ok := session.ParseRole(role)
	if !ok {
		// A row with a role outside the fixed set cannot authenticate.
		return nil, shared.ErrNotFound
	}
	acct.Role = parsed
	return &acct, nil
}

// CreateSession persists a new login session for auditing and purge.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	const query = `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`
	_, err := r.pool.Exec(ctx, query, id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredSessions removes at most limit rows past their expiry,
// oldest first, returning the count.
func (r *PGRepository) DeleteExpiredSessions(ctx context.Context, limit int) (int64, error) {
	const query = `DELETE FROM sessions WHERE id IN (
		SELECT id FROM sessions WHERE expires_at < NOW()
		ORDER BY expires_at LIMIT $1)`
	tag, err := r.pool.Exec(ctx, query, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)

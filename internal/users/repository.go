package users

import "context"

// Repository defines data access for account administration.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (*User, error)
	UpdateRole(ctx context.Context, id int64, role string) error
	SetActive(ctx context.Context, id int64, active bool) error
	SessionIDs(ctx context.Context, userID int64) ([]string, error)
}

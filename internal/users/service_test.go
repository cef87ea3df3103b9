package users_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
	"github.com/sangbadpatra/sangbadpatra/internal/users"
	_ "github.com/sangbadpatra/sangbadpatra/testing"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]users.User
	sessions map[int64][]string
}

func newMemoryRepo(accounts ...users.User) *memoryRepo {
	repo := &memoryRepo{accounts: map[int64]users.User{}, sessions: map[int64][]string{}}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (m *memoryRepo) List(_ context.Context, limit, offset int) ([]users.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []users.User
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, len(m.accounts), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *memoryRepo) UpdateRole(_ context.Context, id int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Role = role
	m.accounts[id] = a
	return nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.IsActive = active
	m.accounts[id] = a
	return nil
}

func (m *memoryRepo) SessionIDs(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

type recordingRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (r *recordingRevoker) Revoke(_ context.Context, sessionID string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, sessionID)
}

func account(id int64, role string) users.User {
	return users.User{
		ID: id, Email: "a@sangbadpatra.com", Name: "A", Role: role,
		IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
}

func actor(id int64, role session.Role) *session.User {
	return &session.User{ID: id, Email: "actor@sangbadpatra.com", Name: "Actor", Role: role}
}

func TestAdminPromotesReaderToReporter(t *testing.T) {
	repo := newMemoryRepo(account(2, "user"))
	repo.sessions[2] = []string{"sess-a", "sess-b"}
	revoker := &recordingRevoker{}
	svc := users.NewService(repo, revoker, nil, nil)

	updated, err := svc.ChangeRole(context.Background(), actor(1, session.RoleAdmin), 2, "reporter")
	require.NoError(t, err)
	require.Equal(t, "reporter", updated.Role)
	require.ElementsMatch(t, []string{"sess-a", "sess-b"}, revoker.revoked)
}

func TestAdminCannotGrantAdmin(t *testing.T) {
	repo := newMemoryRepo(account(2, "reporter"))
	svc := users.NewService(repo, nil, nil, nil)

	_, err := svc.ChangeRole(context.Background(), actor(1, session.RoleAdmin), 2, "admin")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAdminCannotTouchAdminAccounts(t *testing.T) {
	repo := newMemoryRepo(account(2, "admin"))
	svc := users.NewService(repo, nil, nil, nil)

	_, err := svc.ChangeRole(context.Background(), actor(1, session.RoleAdmin), 2, "user")
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.SetActive(context.Background(), actor(1, session.RoleAdmin), 2, false)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSuperAdminGrantsAdmin(t *testing.T) {
	repo := newMemoryRepo(account(2, "reporter"))
	svc := users.NewService(repo, nil, nil, nil)

	updated, err := svc.ChangeRole(context.Background(), actor(1, session.RoleSuperAdmin), 2, "admin")
	require.NoError(t, err)
	require.Equal(t, "admin", updated.Role)
}

func TestNobodyChangesOwnRole(t *testing.T) {
	repo := newMemoryRepo(account(1, "super_admin"))
	svc := users.NewService(repo, nil, nil, nil)

	_, err := svc.ChangeRole(context.Background(), actor(1, session.RoleSuperAdmin), 1, "user")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUnknownRoleRejected(t *testing.T) {
	repo := newMemoryRepo(account(2, "user"))
	svc := users.NewService(repo, nil, nil, nil)

	_, err := svc.ChangeRole(context.Background(), actor(1, session.RoleSuperAdmin), 2, "owner")
	require.Error(t, err)
}

func TestDisableRevokesSessions(t *testing.T) {
	repo := newMemoryRepo(account(2, "reporter"))
	repo.sessions[2] = []string{"sess-live"}
	revoker := &recordingRevoker{}
	svc := users.NewService(repo, revoker, nil, nil)

	updated, err := svc.SetActive(context.Background(), actor(1, session.RoleAdmin), 2, false)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.Equal(t, []string{"sess-live"}, revoker.revoked)

	// Re-enabling touches no sessions.
	revoker.revoked = nil
	updated, err = svc.SetActive(context.Background(), actor(1, session.RoleAdmin), 2, true)
	require.NoError(t, err)
	require.True(t, updated.IsActive)
	require.Empty(t, revoker.revoked)
}

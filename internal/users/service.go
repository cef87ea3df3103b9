package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// Revoker kills live sessions. *session.Store satisfies it.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, userID int64)
}

// Service handles account administration. Role grants and activation
// changes revoke the target's sessions so stale token claims die with
// the change.
type Service struct {
	repo    Repository
	revoker Revoker
	audit   *shared.AuditLogger
	logger  *slog.Logger
}

// NewService builds a Service. Revoker and audit may be nil.
func NewService(repo Repository, revoker Revoker, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, revoker: revoker, audit: audit, logger: logger}
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	pg := shared.NewPagination(page, perPage, 0)
	accounts, total, err := s.repo.List(ctx, pg.PerPage, pg.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return accounts, shared.NewPagination(page, perPage, total), nil
}

// ChangeRole reassigns an account's role. Admins manage reader and
// reporter accounts; only a super admin may grant or strip admin level
// roles. Nobody changes their own role.
func (s *Service) ChangeRole(ctx context.Context, actor *session.User, id int64, role string) (*User, error) {
	newRole, ok := session.ParseRole(role)
	if !ok {
		return nil, shared.ErrNotFound
	}
	if actor == nil || actor.ID == id {
		return nil, shared.ErrForbidden
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	currentRole, _ := session.ParseRole(target.Role)
	if !s.canAssign(actor, currentRole) || !s.canAssign(actor, newRole) {
		return nil, shared.ErrForbidden
	}
	if err := s.repo.UpdateRole(ctx, id, string(newRole)); err != nil {
		return nil, err
	}
	s.revokeSessions(ctx, id)
	s.record(ctx, actor, shared.AuditRoleChange, id, map[string]any{"from": target.Role, "to": string(newRole)})
	target.Role = string(newRole)
	return target, nil
}

// SetActive enables or disables an account. Disabling revokes every
// live session of the target.
func (s *Service) SetActive(ctx context.Context, actor *session.User, id int64, active bool) (*User, error) {
	if actor == nil || actor.ID == id {
		return nil, shared.ErrForbidden
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	currentRole, _ := session.ParseRole(target.Role)
	if !s.canAssign(actor, currentRole) {
		return nil, shared.ErrForbidden
	}
	// Capture session ids first; deactivation deletes the rows.
	var liveSessions []string
	if !active {
		ids, err := s.repo.SessionIDs(ctx, id)
		if err != nil {
			s.logger.Warn("list sessions for revocation", slog.Int64("user_id", id), slog.Any("error", err))
		}
		liveSessions = ids
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	if !active {
		s.revoke(ctx, id, liveSessions)
		s.record(ctx, actor, shared.AuditUserDisabled, id, nil)
	}
	target.IsActive = active
	return target, nil
}

// canAssign reports whether the actor may manage accounts at the given
// role level.
func (s *Service) canAssign(actor *session.User, role session.Role) bool {
	switch actor.Role {
	case session.RoleSuperAdmin:
		return true
	case session.RoleAdmin:
		return role == session.RoleUser || role == session.RoleReporter
	}
	return false
}

func (s *Service) revokeSessions(ctx context.Context, userID int64) {
	ids, err := s.repo.SessionIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("list sessions for revocation", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	s.revoke(ctx, userID, ids)
}

func (s *Service) revoke(ctx context.Context, userID int64, ids []string) {
	if s.revoker == nil {
		return
	}
	for _, id := range ids {
		s.revoker.Revoke(ctx, id, userID)
	}
}

func (s *Service) record(ctx context.Context, actor *session.User, action string, targetID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(targetID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

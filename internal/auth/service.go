package auth

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// defaultPurgeBatch bounds a purge run when the caller gives no limit.
const defaultPurgeBatch = 1000

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	codec  *session.TokenCodec
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a new Service. The audit logger may be nil.
func NewService(repo Repository, codec *session.TokenCodec, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, codec: codec, audit: audit, logger: logger}
}

// Authenticate validates email/password credentials. Unknown accounts,
// inactive accounts, and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acct, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acct.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acct, nil
}

// Login authenticates and issues a fresh session snapshot and bearer
// token, registering the session in postgres.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (session.User, string, error) {
	acct, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return session.User{}, "", err
	}
	issued, token, err := s.codec.Issue(acct.Snapshot())
	if err != nil {
		return session.User{}, "", err
	}
	if err := s.repo.CreateSession(ctx, issued.SessionID, acct.ID, issued.ExpiresAt, ip, ua); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	s.record(ctx, shared.AuditLog{
		ActorID: acct.ID, Action: shared.AuditLogin,
		Entity: "session", EntityID: issued.SessionID,
		Meta: map[string]any{"ip": ip},
	})
	return issued, token, nil
}

// Logout removes the session registration.
func (s *Service) Logout(ctx context.Context, u *session.User) error {
	if u == nil {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, u.SessionID); err != nil {
		return err
	}
	s.record(ctx, shared.AuditLog{
		ActorID: u.ID, Action: shared.AuditLogout,
		Entity: "session", EntityID: u.SessionID,
	})
	return nil
}

// PurgeExpiredSessions deletes up to limit session rows past their
// expiry. A non-positive limit falls back to the default batch size.
func (s *Service) PurgeExpiredSessions(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultPurgeBatch
	}
	n, err := s.repo.DeleteExpiredSessions(ctx, limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.record(ctx, shared.AuditLog{
			Action: shared.AuditSessionRevoked, Entity: "session",
			EntityID: "expired", Meta: map[string]any{"count": strconv.FormatInt(n, 10)},
		})
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

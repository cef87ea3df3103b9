// Package gate enforces the access policy on every navigation before
// any content is produced, and guards API routes by role.
package gate

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sangbadpatra/sangbadpatra/internal/observability"
	"github.com/sangbadpatra/sangbadpatra/internal/policy"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
)

// Gate evaluates incoming requests against the one policy table. It
// holds no mutable state across requests; every navigation is decided
// independently.
type Gate struct {
	store   *session.Store
	table   *policy.Table
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New constructs a Gate. Metrics may be nil.
func New(store *session.Store, table *policy.Table, logger *slog.Logger, metrics *observability.Metrics) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, table: table, logger: logger, metrics: metrics}
}

// Attach loads the session once per request and stores it in context so
// the gate, the role guard, and handlers all read the same snapshot.
// The token cookie is tried first, then an Authorization bearer header;
// any parse failure leaves the request anonymous.
func (g *Gate) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		u := g.store.Get(ctx, r)
		if u == nil {
			if token := bearerToken(r); token != "" {
				u = g.store.VerifyToken(ctx, token)
			}
		}
		if u != nil {
			ctx = session.ContextWithUser(ctx, u)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware applies the policy decision: forward, redirect to login, or
// redirect to the caller's own landing page.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := session.UserFromContext(r.Context())
		decision := g.table.Decide(r.URL.Path, u)
		switch decision.Action {
		case policy.Forward:
			g.record("forward")
			next.ServeHTTP(w, r)
		case policy.Redirect:
			if decision.Target == g.table.LoginPath() {
				g.record("redirect_login")
			} else {
				g.record("redirect_home")
				g.logger.Debug("role outside path policy",
					slog.String("path", r.URL.Path),
					slog.String("role", string(u.Role)))
			}
			http.Redirect(w, r, decision.Target, http.StatusSeeOther)
		}
	})
}

// RequireRole guards an API route: 401 without a session, 403 when the
// session's role is not among those given.
func (g *Gate) RequireRole(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := session.UserFromContext(r.Context())
			if u == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordGateDecision(outcome)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

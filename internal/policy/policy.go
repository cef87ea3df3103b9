// Package policy owns the single authorization table for the portal.
// Both the request gate and the API role guard consult this table; the
// policy is never re-declared elsewhere.
package policy

import (
	"sort"
	"strings"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
)

// Action is the outcome kind of a gate decision.
type Action int

const (
	// Forward lets the request through untouched.
	Forward Action = iota
	// Redirect sends the caller to Decision.Target.
	Redirect
)

// Decision is the result of evaluating (path, session) against the table.
type Decision struct {
	Action Action
	Target string
}

// Entry maps a path prefix to the set of roles permitted under it.
type Entry struct {
	Prefix string
	Roles  []session.Role
}

// Allows reports whether the role is a member of the entry's role set.
func (e Entry) Allows(role session.Role) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Config collects the static policy data loaded once at process start.
type Config struct {
	Entries    []Entry
	Exempt     []string
	Landing    map[session.Role]string
	LoginPath  string
	PublicRoot string
}

// Table is the immutable access policy. Prefixes are matched longest
// first; a path with no matching entry is public.
type Table struct {
	entries    []Entry
	exempt     []string
	landing    map[session.Role]string
	loginPath  string
	publicRoot string
}

// New builds a Table from config. The input slices are copied so the
// table cannot be mutated after construction.
func New(cfg Config) *Table {
	entries := make([]Entry, len(cfg.Entries))
	copy(entries, cfg.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].Prefix) > len(entries[j].Prefix)
	})
	landing := make(map[session.Role]string, len(cfg.Landing))
	for role, path := range cfg.Landing {
		landing[role] = path
	}
	return &Table{
		entries:    entries,
		exempt:     append([]string(nil), cfg.Exempt...),
		landing:    landing,
		loginPath:  cfg.LoginPath,
		publicRoot: cfg.PublicRoot,
	}
}

// Default returns the portal's policy: dashboards gated per role, the
// API, auth, static assets, public news pages, and operational endpoints
// exempt from navigation gating.
func Default() *Table {
	return New(Config{
		Entries: []Entry{
			{Prefix: "/dashboard", Roles: []session.Role{session.RoleAdmin, session.RoleSuperAdmin}},
			{Prefix: "/reporter", Roles: []session.Role{session.RoleReporter}},
			{Prefix: "/user", Roles: []session.Role{session.RoleUser}},
		},
		Exempt: []string{"/api", "/auth", "/static", "/news", "/public", "/healthz", "/metrics"},
		Landing: map[session.Role]string{
			session.RoleSuperAdmin: "/dashboard",
			session.RoleAdmin:      "/dashboard",
			session.RoleReporter:   "/reporter/dashboard",
			session.RoleUser:       "/user/dashboard",
		},
		LoginPath:  "/auth/login",
		PublicRoot: "/",
	})
}

// LoginPath returns the unauthenticated redirect target.
func (t *Table) LoginPath() string {
	return t.loginPath
}

// IsExempt reports whether the path bypasses gating entirely.
func (t *Table) IsExempt(path string) bool {
	if path == t.publicRoot {
		return true
	}
	for _, prefix := range t.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Lookup finds the longest registered prefix that is a prefix of path.
func (t *Table) Lookup(path string) (Entry, bool) {
	for _, e := range t.entries {
		if strings.HasPrefix(path, e.Prefix) {
			return e, true
		}
	}
	return Entry{}, false
}

// Landing returns the role's own default landing path, falling back to
// the public root for anything unrecognised.
func (t *Table) Landing(role session.Role) string {
	if path, ok := t.landing[role]; ok {
		return path
	}
	return t.publicRoot
}

// Decide is the pure gate function of (path, session). Absent session on
// a gated path redirects to login; a session whose role is outside the
// matched entry's set redirects to that role's landing page, never to an
// error page.
func (t *Table) Decide(path string, u *session.User) Decision {
	if t.IsExempt(path) {
		return Decision{Action: Forward}
	}
	entry, ok := t.Lookup(path)
	if !ok {
		return Decision{Action: Forward}
	}
	if u == nil {
		return Decision{Action: Redirect, Target: t.loginPath}
	}
	if entry.Allows(u.Role) {
		return Decision{Action: Forward}
	}
	return Decision{Action: Redirect, Target: t.Landing(u.Role)}
}

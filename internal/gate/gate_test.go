package gate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sangbadpatra/sangbadpatra/internal/gate"
	"github.com/sangbadpatra/sangbadpatra/internal/policy"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	_ "github.com/sangbadpatra/sangbadpatra/testing"
)

func newGate(t *testing.T) (*gate.Gate, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	codec := session.NewTokenCodec("gate-secret", "sangbad-test", time.Hour)
	store := session.NewStore(client, codec, nil, nil, false)
	return gate.New(store, policy.Default(), nil, nil), store
}

func loginCookies(t *testing.T, store *session.Store, u session.User) ([]*http.Cookie, string) {
	t.Helper()
	issued, token, err := store.Codec().Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res := httptest.NewRecorder()
	if err := store.Set(context.Background(), res, issued, token); err != nil {
		t.Fatalf("set: %v", err)
	}
	return res.Result().Cookies(), token
}

func serve(g *gate.Gate, req *http.Request) *httptest.ResponseRecorder {
	handler := g.Attach(g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	g, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	res := serve(g, req)
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected login redirect, got %s", loc)
	}
}

func TestGateMalformedCookieFailsClosed(t *testing.T) {
	g, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: "{]garbage"})
	res := serve(g, req)
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/auth/login" {
		t.Fatalf("expected login redirect for malformed session, got %d %s", res.Code, res.Header().Get("Location"))
	}
}

func TestGateReporterRedirectedFromAdminPath(t *testing.T) {
	g, store := newGate(t)
	cookies, _ := loginCookies(t, store, session.User{ID: 1, Email: "r@example.com", Name: "R", Role: session.RoleReporter})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/settings", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := serve(g, req)
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/reporter/dashboard" {
		t.Fatalf("expected redirect to /reporter/dashboard, got %d %s", res.Code, res.Header().Get("Location"))
	}
}

func TestGateAdminForwardedOnAdminPath(t *testing.T) {
	g, store := newGate(t)
	cookies, _ := loginCookies(t, store, session.User{ID: 2, Email: "a@example.com", Name: "A", Role: session.RoleAdmin})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/settings", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if res := serve(g, req); res.Code != http.StatusOK {
		t.Fatalf("expected forward, got %d", res.Code)
	}
}

func TestGateUnmatchedPathPublic(t *testing.T) {
	g, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/archive/2026/election", nil)
	if res := serve(g, req); res.Code != http.StatusOK {
		t.Fatalf("expected public forward, got %d", res.Code)
	}
}

func TestGateBearerHeaderAuth(t *testing.T) {
	g, store := newGate(t)
	_, token := loginCookies(t, store, session.User{ID: 3, Email: "a@example.com", Name: "A", Role: session.RoleSuperAdmin})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if res := serve(g, req); res.Code != http.StatusOK {
		t.Fatalf("expected header-authenticated forward, got %d", res.Code)
	}
}

func TestRequireRole(t *testing.T) {
	g, store := newGate(t)
	cookies, _ := loginCookies(t, store, session.User{ID: 4, Email: "r@example.com", Name: "R", Role: session.RoleReporter})

	handler := g.Attach(g.RequireRole(session.RoleAdmin, session.RoleSuperAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })))

	// No session: 401.
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}

	// Reporter session on admin route: 403.
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}

	// Admin session: forwarded.
	adminCookies, _ := loginCookies(t, store, session.User{ID: 5, Email: "a@example.com", Name: "A", Role: session.RoleAdmin})
	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	for _, c := range adminCookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

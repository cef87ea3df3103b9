package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sangbadpatra/sangbadpatra/internal/session"
	_ "github.com/sangbadpatra/sangbadpatra/testing"
)

func newStore(t *testing.T, ttl time.Duration) (*session.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	codec := session.NewTokenCodec("test-secret", "sangbad-test", ttl)
	return session.NewStore(client, codec, nil, nil, false), mr
}

func login(t *testing.T, store *session.Store, u session.User) (*http.Request, session.User) {
	t.Helper()
	issued, token, err := store.Codec().Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res := httptest.NewRecorder()
	if err := store.Set(context.Background(), res, issued, token); err != nil {
		t.Fatalf("set session: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range res.Result().Cookies() {
		req.AddCookie(c)
	}
	return req, issued
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	req, issued := login(t, store, session.User{
		ID:     7,
		Email:  "admin@example.com",
		Name:   "Admin",
		Role:   session.RoleAdmin,
		Avatar: "https://cdn.example.com/a.png",
	})

	got := store.Get(context.Background(), req)
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.ID != issued.ID || got.Email != issued.Email || got.Name != issued.Name ||
		got.Role != issued.Role || got.Avatar != issued.Avatar || got.SessionID != issued.SessionID {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, issued)
	}
	if !got.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Fatalf("expiry mismatch: got %v want %v", got.ExpiresAt, issued.ExpiresAt)
	}
}

func TestSetWritesBothCookies(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	issued, token, err := store.Codec().Issue(session.User{ID: 1, Email: "admin@example.com", Name: "Admin", Role: session.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res := httptest.NewRecorder()
	if err := store.Set(context.Background(), res, issued, token); err != nil {
		t.Fatalf("set session: %v", err)
	}

	cookies := res.Result().Cookies()
	var userCookie, tokenCookie *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case session.UserCookie:
			userCookie = c
		case session.TokenCookie:
			tokenCookie = c
		}
	}
	if userCookie == nil || tokenCookie == nil {
		t.Fatalf("expected user and token cookies, got %v", cookies)
	}
	if userCookie.HttpOnly {
		t.Fatal("user cookie must stay readable by page scripts")
	}
	if !tokenCookie.HttpOnly {
		t.Fatal("token cookie must be http-only")
	}
	if userCookie.SameSite != http.SameSiteStrictMode || tokenCookie.SameSite != http.SameSiteStrictMode {
		t.Fatal("cookies must be SameSite=Strict")
	}

	raw, err := url.QueryUnescape(userCookie.Value)
	if err != nil {
		t.Fatalf("unescape user cookie: %v", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		t.Fatalf("decode user cookie: %v", err)
	}
	if snapshot["role"] != "admin" {
		t.Fatalf("expected role admin in user cookie, got %v", snapshot["role"])
	}
	if tokenCookie.Value != token {
		t.Fatal("token cookie must carry the issued token")
	}
}

func TestSetRequiresBothUserAndToken(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	res := httptest.NewRecorder()
	if err := store.Set(context.Background(), res, session.User{}, "tok"); err != session.ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if err := store.Set(context.Background(), res, session.User{ID: 1}, ""); err != session.ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestGetExpiredSessionIsNil(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	req, _ := login(t, store, session.User{
		ID:        3,
		Email:     "reporter@example.com",
		Name:      "Reporter",
		Role:      session.RoleReporter,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	// The cookie still holds the raw token bytes; expiry is enforced at
	// read time, not by deletion.
	if c, err := req.Cookie(session.TokenCookie); err != nil || c.Value == "" {
		t.Fatal("token cookie should still be present")
	}
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatalf("expected nil for expired session, got %+v", got)
	}
}

func TestGetMalformedCookieIsNil(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: session.TokenCookie, Value: "not-a-token"})
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatalf("expected nil for malformed token, got %+v", got)
	}
}

func TestGetRevokedSessionIsNil(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	req, issued := login(t, store, session.User{ID: 5, Email: "u@example.com", Name: "U", Role: session.RoleUser})

	store.Revoke(context.Background(), issued.SessionID, issued.ID)
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatalf("expected nil after revocation, got %+v", got)
	}
}

func TestGetDegradesWhenRegistryUnavailable(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	req, _ := login(t, store, session.User{ID: 5, Email: "u@example.com", Name: "U", Role: session.RoleUser})

	mr.Close()
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatalf("expected nil when registry unavailable, got %+v", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	req, _ := login(t, store, session.User{ID: 2, Email: "a@example.com", Name: "A", Role: session.RoleAdmin})

	res1 := httptest.NewRecorder()
	store.Clear(context.Background(), res1, req)
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty registry after clear, got %v", keys)
	}
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatal("expected nil session after first clear")
	}

	res2 := httptest.NewRecorder()
	store.Clear(context.Background(), res2, req)
	if got := store.Get(context.Background(), req); got != nil {
		t.Fatal("expected nil session after second clear")
	}

	for _, c := range res2.Result().Cookies() {
		if c.MaxAge != -1 {
			t.Fatalf("expected expired cookie %s, got MaxAge %d", c.Name, c.MaxAge)
		}
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	req, issued := login(t, store, session.User{
		ID: 4, Email: "r@example.com", Name: "R", Role: session.RoleReporter,
		ExpiresAt: time.Now().Add(time.Minute),
	})

	res := httptest.NewRecorder()
	refreshed := store.Refresh(context.Background(), res, req)
	if refreshed == nil {
		t.Fatal("expected refreshed session")
	}
	if refreshed.ID != issued.ID || refreshed.Role != issued.Role || refreshed.SessionID != issued.SessionID {
		t.Fatal("refresh must not change identity")
	}
	if !refreshed.ExpiresAt.After(issued.ExpiresAt) {
		t.Fatalf("expected extended expiry, got %v <= %v", refreshed.ExpiresAt, issued.ExpiresAt)
	}
}

func TestRefreshWithoutSessionIsNoOp(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	if got := store.Refresh(context.Background(), res, req); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no registry writes, got %v", keys)
	}
}

func TestIsAuthenticated(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	if store.IsAuthenticated(context.Background(), anon) {
		t.Fatal("anonymous request must not be authenticated")
	}
	req, _ := login(t, store, session.User{ID: 9, Email: "x@example.com", Name: "X", Role: session.RoleUser})
	if !store.IsAuthenticated(context.Background(), req) {
		t.Fatal("expected authenticated request")
	}
}

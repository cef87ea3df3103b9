package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// UserCookie carries the JSON identity snapshot for page scripts.
	// It is written, never read back: the token is the source of truth.
	UserCookie = "user"
	// TokenCookie carries the signed bearer token.
	TokenCookie = "token"

	registryPrefix = "sess:"
)

// Store is the single source of truth, within the process, for "who is
// logged in and with what token". It writes the cookie pair through one
// path and keeps a redis registry record per live session so logout and
// forced deauthorisation revoke tokens before their expiry.
type Store struct {
	client    *redis.Client
	codec     *TokenCodec
	broadcast *Broadcaster
	logger    *slog.Logger
	secure    bool
}

type registryRecord struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewStore constructs a Store. The broadcaster may be nil when no other
// component needs session events.
func NewStore(client *redis.Client, codec *TokenCodec, broadcast *Broadcaster, logger *slog.Logger, secure bool) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, codec: codec, broadcast: broadcast, logger: logger, secure: secure}
}

// Codec exposes the token codec for callers that issue tokens.
func (s *Store) Codec() *TokenCodec {
	return s.codec
}

// Set persists the user and token as a pair: both cookies, the registry
// record, and a login event. Requires both to be non-empty; the caller
// must already have authenticated the user.
func (s *Store) Set(ctx context.Context, w http.ResponseWriter, u User, token string) error {
	if u.ID == 0 || token == "" {
		return ErrIncomplete
	}
	if err := s.writeRegistry(ctx, u); err != nil {
		return err
	}
	s.writeCookies(w, u, token)
	s.publish(ctx, Event{Kind: EventLogin, SessionID: u.SessionID, UserID: u.ID})
	return nil
}

// Get reads the session from the request. It returns nil when the token
// cookie is absent, malformed, expired, or revoked in the registry, and
// never returns an error: session absence has defined behaviour upstream.
func (s *Store) Get(ctx context.Context, r *http.Request) *User {
	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return nil
	}
	return s.VerifyToken(ctx, cookie.Value)
}

// VerifyToken validates a bearer token from any transport (cookie or
// Authorization header) against the codec and the revocation registry.
func (s *Store) VerifyToken(ctx context.Context, token string) *User {
	u, err := s.codec.Verify(token)
	if err != nil {
		return nil
	}
	if u.Expired(time.Now()) {
		return nil
	}
	// Registry miss means revoked; registry failure degrades to "no
	// session" so revocation cannot be bypassed by losing redis.
	n, err := s.client.Exists(ctx, registryPrefix+u.SessionID).Result()
	if err != nil {
		s.logger.Warn("session registry lookup", slog.Any("error", err))
		return nil
	}
	if n == 0 {
		return nil
	}
	return u
}

// Refresh extends the session expiry without changing identity. It is a
// no-op returning nil when no valid session is attached to the request.
func (s *Store) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) *User {
	u := s.Get(ctx, r)
	if u == nil {
		return nil
	}
	u.ExpiresAt = time.Now().Add(s.codec.TTL())
	refreshed, token, err := s.codec.Issue(*u)
	if err != nil {
		s.logger.Error("session refresh", slog.Any("error", err))
		return nil
	}
	if err := s.writeRegistry(ctx, refreshed); err != nil {
		s.logger.Warn("session refresh registry", slog.Any("error", err))
		return nil
	}
	s.writeCookies(w, refreshed, token)
	s.publish(ctx, Event{Kind: EventRefresh, SessionID: refreshed.SessionID, UserID: refreshed.ID})
	return &refreshed
}

// Clear removes every session artifact: the registry record and both
// cookies. Calling it without a live session is a no-op on storage.
func (s *Store) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	u := s.Get(ctx, r)
	if u != nil {
		if err := s.client.Del(ctx, registryPrefix+u.SessionID).Err(); err != nil {
			s.logger.Warn("session registry delete", slog.Any("error", err))
		}
		s.publish(ctx, Event{Kind: EventLogout, SessionID: u.SessionID, UserID: u.ID})
	}
	s.expireCookies(w)
}

// Revoke deletes a session registry record by id, used when an upstream
// 401 forces a logout without a request in hand.
func (s *Store) Revoke(ctx context.Context, sessionID string, userID int64) {
	if sessionID == "" {
		return
	}
	if err := s.client.Del(ctx, registryPrefix+sessionID).Err(); err != nil {
		s.logger.Warn("session revoke", slog.Any("error", err))
	}
	s.publish(ctx, Event{Kind: EventLogout, SessionID: sessionID, UserID: userID})
}

// IsAuthenticated reports whether the request carries a valid session.
func (s *Store) IsAuthenticated(ctx context.Context, r *http.Request) bool {
	return s.Get(ctx, r) != nil
}

func (s *Store) writeRegistry(ctx context.Context, u User) error {
	record := registryRecord{UserID: u.ID, Email: u.Email, Role: string(u.Role), ExpiresAt: u.ExpiresAt}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := time.Until(u.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, registryPrefix+u.SessionID, data, ttl).Err()
}

func (s *Store) writeCookies(w http.ResponseWriter, u User, token string) {
	snapshot, err := json.Marshal(u)
	if err != nil {
		s.logger.Error("marshal user snapshot", slog.Any("error", err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookie,
		Value:    encodeCookieValue(snapshot),
		Path:     "/",
		Expires:  u.ExpiresAt,
		HttpOnly: false,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  u.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Store) expireCookies(w http.ResponseWriter) {
	for _, name := range []string{UserCookie, TokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == TokenCookie,
			Secure:   s.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// encodeCookieValue percent-encodes the JSON snapshot so the quotes and
// commas survive the cookie grammar. Page scripts decodeURIComponent it.
func encodeCookieValue(data []byte) string {
	return url.QueryEscape(string(data))
}

func (s *Store) publish(ctx context.Context, ev Event) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.Publish(ctx, ev); err != nil {
		s.logger.Warn("session event publish", slog.Any("error", err))
	}
}

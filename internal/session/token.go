package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload carrying the identity snapshot. The signed
// token is the sole trusted copy of the session; everything else (the
// user cookie, the redis registry record) is derived from it.
type Claims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session bearer tokens with HS256.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(secret, issuer string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL exposes the configured session lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// NewSessionID returns a fresh session identifier used as the token jti.
func NewSessionID() string {
	return uuid.New().String()
}

// Issue signs a token for the snapshot. A zero ExpiresAt gets the codec
// TTL; an empty SessionID gets a fresh id. The possibly amended user is
// returned so callers hold the same snapshot the token encodes.
func (c *TokenCodec) Issue(u User) (User, string, error) {
	if u.SessionID == "" {
		u.SessionID = NewSessionID()
	}
	if u.ExpiresAt.IsZero() {
		u.ExpiresAt = time.Now().Add(c.ttl)
	}
	u.ExpiresAt = u.ExpiresAt.Truncate(time.Second)
	claims := Claims{
		Email:  u.Email,
		Name:   u.Name,
		Role:   string(u.Role),
		Avatar: u.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        u.SessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(u.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return User{}, "", fmt.Errorf("session: sign token: %w", err)
	}
	return u, signed, nil
}

// Verify parses and validates a signed token and rebuilds the snapshot.
// Expired, malformed, and otherwise invalid tokens all return an error;
// callers treat every failure as "no session".
func (c *TokenCodec) Verify(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("session: invalid claims")
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("session: unknown role %q", claims.Role)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: subject: %w", err)
	}
	u := &User{
		ID:        id,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      role,
		Avatar:    claims.Avatar,
		SessionID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	return u, nil
}

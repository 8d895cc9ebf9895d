// Package auth issues and resolves the session cookie that identifies
// every websocket and HTTP caller. Sessions are stateless HS256 JWTs; the
// subject claim carries the opaque user id minted at issuance.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nbittich/hearts/internal/v1/users"
)

// SessionTTL bounds how long an issued cookie stays valid.
const SessionTTL = 24 * time.Hour

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid session token")
)

// Claims is the session token payload.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Guest bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies session cookies.
type Sessions struct {
	secret     []byte
	cookieName string
	secure     bool
}

// NewSessions builds a session manager. secure toggles the cookie Secure
// attribute; disable it only for local development over plain HTTP.
func NewSessions(secret, cookieName string, secure bool) *Sessions {
	return &Sessions{
		secret:     []byte(secret),
		cookieName: cookieName,
		secure:     secure,
	}
}

// CookieName returns the configured cookie name.
func (s *Sessions) CookieName() string {
	return s.cookieName
}

// Issue signs a token for the user and wraps it in a cookie. The cookie is
// HttpOnly so the id is never readable from page scripts.
func (s *Sessions) Issue(u users.User) (*http.Cookie, error) {
	now := time.Now()
	claims := Claims{
		Name:  u.Name,
		Guest: u.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Resolve authenticates a request from its session cookie and returns the
// caller's id and claims.
func (s *Sessions) Resolve(r *http.Request) (users.ID, *Claims, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return uuid.Nil, nil, ErrNoSession
	}
	return s.Verify(cookie.Value)
}

// Verify parses and validates a raw session token.
func (s *Sessions) Verify(raw string) (users.ID, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, nil, ErrInvalidSession
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidSession
	}
	return id, claims, nil
}

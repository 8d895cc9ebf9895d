package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbittich/hearts/internal/v1/users"
)

const testSecret = "this-is-a-very-long-secret-key-for-testing"

func TestIssueAndResolve(t *testing.T) {
	s := NewSessions(testSecret, "HeartsCookie", false)
	u := users.User{ID: uuid.New(), Name: "alice"}

	cookie, err := s.Issue(u)
	require.NoError(t, err)
	assert.Equal(t, "HeartsCookie", cookie.Name)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest("GET", "/ws/abc", nil)
	req.AddCookie(cookie)

	id, claims, err := s.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, "alice", claims.Name)
	assert.False(t, claims.Guest)
}

func TestResolve_NoCookie(t *testing.T) {
	s := NewSessions(testSecret, "HeartsCookie", false)

	req := httptest.NewRequest("GET", "/", nil)

	_, _, err := s.Resolve(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestResolve_WrongSecret(t *testing.T) {
	issuer := NewSessions(testSecret, "HeartsCookie", false)
	verifier := NewSessions("a-completely-different-secret-of-enough-length", "HeartsCookie", false)

	cookie, err := issuer.Issue(users.User{ID: uuid.New()})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)

	_, _, err = verifier.Resolve(req)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerify_Garbage(t *testing.T) {
	s := NewSessions(testSecret, "HeartsCookie", false)

	_, _, err := s.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestIssue_GuestClaims(t *testing.T) {
	s := NewSessions(testSecret, "HeartsCookie", false)
	u := users.NewGuest(uuid.New())

	cookie, err := s.Issue(u)
	require.NoError(t, err)

	_, claims, err := s.Verify(cookie.Value)
	require.NoError(t, err)
	assert.True(t, claims.Guest)
	assert.Equal(t, u.Name, claims.Name)
}

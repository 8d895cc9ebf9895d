package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbittich/hearts/internal/v1/auth"
	"github.com/nbittich/hearts/internal/v1/config"
	"github.com/nbittich/hearts/internal/v1/users"
)

func newTestLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	cfg := &config.Config{
		RateLimitAPIGlobal: "10-M", // 10 per minute
		RateLimitAPIPublic: "5-M",  // 5 per minute
		RateLimitAPIRooms:  "5-M",
		RateLimitWsIP:      "5-M",
		RateLimitWsUser:    "5-M",
	}

	rl, err := NewRateLimiter(cfg)
	require.NoError(t, err)
	return rl
}

func TestNewRateLimiter_InvalidRate(t *testing.T) {
	cfg := &config.Config{
		RateLimitAPIGlobal: "not-a-rate",
		RateLimitAPIPublic: "5-M",
		RateLimitAPIRooms:  "5-M",
		RateLimitWsIP:      "5-M",
		RateLimitWsUser:    "5-M",
	}

	_, err := NewRateLimiter(cfg)
	assert.Error(t, err)
}

func TestGlobalMiddleware_Public(t *testing.T) {
	rl := newTestLimiter(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.GlobalMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Make 5 requests (limit is 5)
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "5", resp.Header().Get("X-RateLimit-Limit"))
	}

	// 6th request should fail
	req, _ := http.NewRequest("GET", "/test", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestGlobalMiddleware_User(t *testing.T) {
	rl := newTestLimiter(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Mock auth middleware to inject claims
	r.Use(func(c *gin.Context) {
		claims := &auth.Claims{}
		claims.Subject = "user1"
		c.Set(auth.ClaimsKey, claims)
		c.Next()
	})
	r.Use(rl.GlobalMiddleware())
	r.GET("/test-user", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Global user limit is 10
	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest("GET", "/test-user", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	}

	// 11th should fail
	req, _ := http.NewRequest("GET", "/test-user", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

// End to end through the session middleware: a request carrying a valid
// session cookie must be limited per user, not per IP.
func TestGlobalMiddleware_SessionCookieKeysByUser(t *testing.T) {
	rl := newTestLimiter(t)
	sessions := auth.NewSessions("this-is-a-very-long-secret-key-for-testing", "HeartsCookie", false)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Middleware())
	r.Use(rl.GlobalMiddleware())
	r.GET("/test-cookie", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cookie, err := sessions.Issue(users.User{ID: uuid.New(), Name: "alice"})
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/test-cookie", nil)
	req.AddCookie(cookie)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	// The per-user global limit (10) applies, not the public IP limit (5).
	assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))

	// Without the cookie the same client falls back to the IP key.
	req, _ = http.NewRequest("GET", "/test-cookie", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("X-RateLimit-Limit"))
}

func TestRoomsMiddleware(t *testing.T) {
	rl := newTestLimiter(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Rooms limit is 5
	r.POST("/rooms", rl.RoomsMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest("POST", "/rooms", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req, _ := http.NewRequest("POST", "/rooms", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestCheckWebSocket_IP(t *testing.T) {
	rl := newTestLimiter(t)

	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request, _ = http.NewRequest("GET", "/ws", nil)

	// Consume 5
	for i := 0; i < 5; i++ {
		allowed := rl.CheckWebSocket(ctx)
		assert.True(t, allowed)
	}

	// 6th should fail
	allowed := rl.CheckWebSocket(ctx)
	assert.False(t, allowed)
}

func TestCheckWebSocketUser(t *testing.T) {
	rl := newTestLimiter(t)

	ctx := context.Background()
	// Consume 5
	for i := 0; i < 5; i++ {
		err := rl.CheckWebSocketUser(ctx, "user1")
		assert.NoError(t, err)
	}

	// 6th
	err := rl.CheckWebSocketUser(ctx, "user1")
	assert.Error(t, err)
}

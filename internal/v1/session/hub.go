package session

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nbittich/hearts/internal/v1/auth"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/metrics"
	"github.com/nbittich/hearts/internal/v1/room"
	"github.com/nbittich/hearts/internal/v1/users"
)

// Authenticator resolves the caller's identity from the request. Satisfied
// by *auth.Sessions; tests substitute stubs.
type Authenticator interface {
	Resolve(r *http.Request) (users.ID, *auth.Claims, error)
}

// ConnectionLimiter gates websocket upgrades. Optional; nil disables
// limiting.
type ConnectionLimiter interface {
	CheckWebSocket(c *gin.Context) bool
	CheckWebSocketUser(ctx context.Context, userID string) error
}

// Hub upgrades authenticated HTTP requests into websocket bridges bound to
// rooms from the registry.
type Hub struct {
	registry       *room.Registry
	sessions       Authenticator
	limiter        ConnectionLimiter
	allowedOrigins []string
}

func NewHub(registry *room.Registry, sessions Authenticator, limiter ConnectionLimiter, allowedOrigins []string) *Hub {
	return &Hub{
		registry:       registry,
		sessions:       sessions,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
	}
}

// ServeWs authenticates the caller from the session cookie, looks up the
// room and upgrades the connection.
//
// Responses:
//   - 401 Unauthorized when the session cookie is missing or invalid.
//   - 404 Not Found for unknown room ids.
//   - 429 Too Many Requests when a connection limit is hit.
//   - Upgrades to WebSocket on success.
func (h *Hub) ServeWs(c *gin.Context) {
	ctx := c.Request.Context()

	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	userID, _, err := h.sessions.Resolve(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckWebSocketUser(ctx, userID.String()); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
			return
		}
	}

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	r, ok := h.registry.Get(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	// A finished actor (e.g. after a bus fault) is replaced before the
	// client subscribes.
	r.Restart()

	// Subscribe before the upgrade completes so the client cannot miss
	// messages published between upgrade and first Recv.
	rcv := r.Subscribe()

	upgrader := websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		WriteBufferPool: &sync.Pool{},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rcv.Close()
		logging.Error(ctx, "Failed to upgrade connection", zap.Error(err))
		return
	}

	logging.Info(ctx, "websocket connected",
		zap.String("room", roomID.String()),
		zap.String("user", userID.String()))
	metrics.IncConnection()

	client := newClient(conn, rcv, r, userID)
	pumpCtx, cancel := context.WithCancel(context.Background())
	client.cancel = cancel
	go client.writePump(pumpCtx)
	go client.readPump(pumpCtx)
}

// checkOrigin matches the Origin header against the configured allow list
// by scheme and host. Requests without an Origin (non-browser clients) are
// allowed.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return true
		}
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

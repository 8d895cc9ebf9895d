package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nbittich/hearts/internal/v1/room"
)

// RoomCounter reports how many rooms are live. Satisfied by the room
// registry; tests substitute a stub.
type RoomCounter interface {
	Len() int
}

// Handler manages health check endpoints
type Handler struct {
	rooms RoomCounter
}

// NewHandler creates a new health check handler
func NewHandler(rooms RoomCounter) *Handler {
	return &Handler{rooms: rooms}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 while the registry can still accept rooms, 503 once it is
// saturated.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	roomsStatus := h.checkRooms()
	checks["rooms"] = roomsStatus
	if roomsStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

func (h *Handler) checkRooms() string {
	if h.rooms == nil {
		return "unhealthy"
	}
	if h.rooms.Len() >= room.MaxRooms {
		return "saturated"
	}
	return "healthy"
}

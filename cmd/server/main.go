package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nbittich/hearts/internal/v1/auth"
	"github.com/nbittich/hearts/internal/v1/config"
	"github.com/nbittich/hearts/internal/v1/game"
	"github.com/nbittich/hearts/internal/v1/health"
	"github.com/nbittich/hearts/internal/v1/logging"
	"github.com/nbittich/hearts/internal/v1/ratelimit"
	"github.com/nbittich/hearts/internal/v1/room"
	"github.com/nbittich/hearts/internal/v1/session"
	"github.com/nbittich/hearts/internal/v1/users"
)

func main() {
	// Load .env file for local development.
	envPaths := []string{".env", "../../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Core services ---
	directory := users.NewDirectory()
	sessions := auth.NewSessions(cfg.SessionSecret, cfg.CookieName, !cfg.DevelopmentMode)
	registry := room.NewRegistry(game.New, directory)

	limiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	allowedOrigins := splitOrigins(cfg.CorsAllowOrigin)
	hub := session.NewHub(registry, sessions, limiter, allowedOrigins)

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = cfg.BodySizeLimit

	corsConfig := cors.DefaultConfig()
	if cfg.CorsAllowOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(sessions.Middleware())
	router.Use(limiter.GlobalMiddleware())

	// Routing
	router.POST("/session", issueSession(sessions, directory))
	router.POST("/rooms", limiter.RoomsMiddleware(), createRoom(sessions, registry))
	router.GET("/rooms", listRooms(sessions, registry))
	router.GET(cfg.WsEndpoint+"/:roomId", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(registry)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	go func() {
		slog.Info("API server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close every room bus first so actors, supervisors and bridges drain.
	if err := registry.Shutdown(ctx); err != nil {
		slog.Error("Error during registry shutdown:", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	slog.Info("Server exiting")
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type sessionRequest struct {
	Name string `json:"name"`
}

// issueSession mints a user id, registers the display record and sets the
// session cookie. An existing valid session is reused so reconnecting
// clients keep their identity.
func issueSession(sessions *auth.Sessions, directory *users.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionRequest
		_ = c.ShouldBindJSON(&req)

		id, _, err := sessions.Resolve(c.Request)
		if err != nil {
			id = uuid.New()
		}

		u := users.User{ID: id, Name: req.Name, IsGuest: req.Name == ""}
		if u.IsGuest {
			u = users.NewGuest(id)
		}
		u = directory.Upsert(u)

		cookie, err := sessions.Issue(u)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue session"})
			return
		}
		http.SetCookie(c.Writer, cookie)
		c.JSON(http.StatusOK, u)
	}
}

func createRoom(sessions *auth.Sessions, registry *room.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := sessions.Resolve(c.Request); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		r, err := registry.Create()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": r.ID, "phase": r.Phase().String()})
	}
}

func listRooms(sessions *auth.Sessions, registry *room.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, err := sessions.Resolve(c.Request); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		c.JSON(http.StatusOK, registry.List())
	}
}

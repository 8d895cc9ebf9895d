package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Required variables
	SessionSecret string
	Host          string
	Port          string

	// Optional variables with defaults
	ApplicationName string
	GoEnv           string
	LogLevel        string
	CorsAllowOrigin string
	BodySizeLimit   int64
	CookieName      string
	WsEndpoint      string
	DataVolume      string
	DevelopmentMode bool

	// Rate Limits
	RateLimitAPIGlobal string
	RateLimitAPIPublic string
	RateLimitAPIRooms  string
	RateLimitWsIP      string
	RateLimitWsUser    string
}

// ValidateEnv validates all required environment variables and returns a Config object
// Returns an error if any required variable is missing or invalid
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: SESSION_SECRET (minimum 32 characters)
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		errors = append(errors, "SESSION_SECRET is required")
	} else if len(cfg.SessionSecret) < 32 {
		errors = append(errors, fmt.Sprintf("SESSION_SECRET must be at least 32 characters (got %d)", len(cfg.SessionSecret)))
	}

	// Required: SERVICE_PORT (valid port number)
	cfg.Port = os.Getenv("SERVICE_PORT")
	if cfg.Port == "" {
		errors = append(errors, "SERVICE_PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("SERVICE_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.Host = getEnvOrDefault("SERVICE_HOST", "0.0.0.0")

	// Optional with defaults
	cfg.ApplicationName = getEnvOrDefault("SERVICE_APPLICATION_NAME", "hearts")
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.CorsAllowOrigin = getEnvOrDefault("CORS_ALLOW_ORIGIN", "*")
	cfg.CookieName = getEnvOrDefault("SESSION_COOKIE_NAME", "HeartsCookie")
	cfg.WsEndpoint = getEnvOrDefault("WS_ENDPOINT", "/ws")
	cfg.DataVolume = os.Getenv("SERVICE_DATA_VOLUME")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	// Optional: BODY_SIZE_LIMIT in bytes (defaults to 64KiB)
	bodyLimit := getEnvOrDefault("BODY_SIZE_LIMIT", "65536")
	limit, err := strconv.ParseInt(bodyLimit, 10, 64)
	if err != nil || limit <= 0 {
		errors = append(errors, fmt.Sprintf("BODY_SIZE_LIMIT must be a positive byte count (got '%s')", bodyLimit))
	} else {
		cfg.BodySizeLimit = limit
	}

	// Rate Limits (M = Minute, H = Hour)
	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIPublic = getEnvOrDefault("RATE_LIMIT_API_PUBLIC", "100-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// Addr returns the host:port pair the HTTP server binds to.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated")
	slog.Info("Configuration",
		"session_secret", redactSecret(cfg.SessionSecret),
		"host", cfg.Host,
		"port", cfg.Port,
		"application_name", cfg.ApplicationName,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"cors_allow_origin", cfg.CorsAllowOrigin,
		"body_size_limit", cfg.BodySizeLimit,
		"cookie_name", cfg.CookieName,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api_global", cfg.RateLimitAPIGlobal,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}

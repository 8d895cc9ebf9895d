package config

import (
	"os"
	"strings"
	"testing"
)

// setupTestEnv clears the variables ValidateEnv reads and restores the
// originals afterwards
func setupTestEnv(t *testing.T) func() {
	keys := []string{
		"SESSION_SECRET", "SERVICE_HOST", "SERVICE_PORT",
		"SERVICE_APPLICATION_NAME", "GO_ENV", "LOG_LEVEL",
		"CORS_ALLOW_ORIGIN", "BODY_SIZE_LIMIT", "SESSION_COOKIE_NAME",
		"WS_ENDPOINT", "SERVICE_DATA_VOLUME", "DEVELOPMENT_MODE",
	}

	origVars := map[string]string{}
	for _, key := range keys {
		origVars[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	return func() {
		for key, val := range origVars {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

func TestValidateEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")
	os.Setenv("SERVICE_PORT", "8080")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.SessionSecret != "this-is-a-very-long-secret-key-for-testing-purposes" {
		t.Errorf("Expected SESSION_SECRET to be set correctly")
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected SERVICE_PORT to be '8080', got '%s'", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Expected SERVICE_HOST to default to '0.0.0.0', got '%s'", cfg.Host)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.CookieName != "HeartsCookie" {
		t.Errorf("Expected SESSION_COOKIE_NAME to default to 'HeartsCookie', got '%s'", cfg.CookieName)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected Addr() to be '0.0.0.0:8080', got '%s'", cfg.Addr())
	}
}

func TestValidateEnv_MissingSessionSecret(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SERVICE_PORT", "8080")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for missing SESSION_SECRET, got nil")
	}
	if !strings.Contains(err.Error(), "SESSION_SECRET is required") {
		t.Errorf("Expected error message about SESSION_SECRET, got: %v", err)
	}
}

func TestValidateEnv_ShortSessionSecret(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "short")
	os.Setenv("SERVICE_PORT", "8080")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for short SESSION_SECRET, got nil")
	}
	if !strings.Contains(err.Error(), "must be at least 32 characters") {
		t.Errorf("Expected error message about SESSION_SECRET length, got: %v", err)
	}
}

func TestValidateEnv_MissingPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for missing SERVICE_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "SERVICE_PORT is required") {
		t.Errorf("Expected error message about SERVICE_PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")
	os.Setenv("SERVICE_PORT", "99999")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for invalid SERVICE_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "SERVICE_PORT must be a valid port number") {
		t.Errorf("Expected error message about invalid SERVICE_PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidBodySizeLimit(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")
	os.Setenv("SERVICE_PORT", "8080")
	os.Setenv("BODY_SIZE_LIMIT", "not-a-number")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("Expected error for invalid BODY_SIZE_LIMIT, got nil")
	}
	if !strings.Contains(err.Error(), "BODY_SIZE_LIMIT must be a positive byte count") {
		t.Errorf("Expected error message about BODY_SIZE_LIMIT, got: %v", err)
	}
}

func TestValidateEnv_OptionalDefaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")
	os.Setenv("SERVICE_PORT", "8080")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.ApplicationName != "hearts" {
		t.Errorf("Expected SERVICE_APPLICATION_NAME to default to 'hearts', got '%s'", cfg.ApplicationName)
	}
	if cfg.CorsAllowOrigin != "*" {
		t.Errorf("Expected CORS_ALLOW_ORIGIN to default to '*', got '%s'", cfg.CorsAllowOrigin)
	}
	if cfg.BodySizeLimit != 65536 {
		t.Errorf("Expected BODY_SIZE_LIMIT to default to 65536, got %d", cfg.BodySizeLimit)
	}
	if cfg.WsEndpoint != "/ws" {
		t.Errorf("Expected WS_ENDPOINT to default to '/ws', got '%s'", cfg.WsEndpoint)
	}
}

func TestValidateEnv_Overrides(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SESSION_SECRET", "this-is-a-very-long-secret-key-for-testing-purposes")
	os.Setenv("SERVICE_PORT", "9000")
	os.Setenv("SERVICE_HOST", "127.0.0.1")
	os.Setenv("SESSION_COOKIE_NAME", "OtherCookie")
	os.Setenv("CORS_ALLOW_ORIGIN", "http://localhost:3000")
	os.Setenv("DEVELOPMENT_MODE", "true")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Expected Addr() to be '127.0.0.1:9000', got '%s'", cfg.Addr())
	}
	if cfg.CookieName != "OtherCookie" {
		t.Errorf("Expected cookie name override, got '%s'", cfg.CookieName)
	}
	if cfg.CorsAllowOrigin != "http://localhost:3000" {
		t.Errorf("Expected CORS_ALLOW_ORIGIN override, got '%s'", cfg.CorsAllowOrigin)
	}
	if !cfg.DevelopmentMode {
		t.Error("Expected DEVELOPMENT_MODE to be true")
	}
}

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"Long secret", "this-is-a-very-long-secret-key", "this-is-***"},
		{"Short secret", "short", "***"},
		{"Exactly 8 chars", "12345678", "***"},
		{"9 chars", "123456789", "12345678***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactSecret(tt.secret)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

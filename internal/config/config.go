// Package config loads and validates configuration from environment variables.
// Client (CLI) and stub-server settings are loaded separately because they
// ship in different binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Client holds all configuration for the driver client.
// Values are populated by LoadClient from environment variables.
type Client struct {
	// APIBaseURL is the backend base URL. Required.
	APIBaseURL string

	// HTTPTimeout is the fixed connect/read/write budget per request.
	// Defaults to 30s. Set HTTP_TIMEOUT_SECONDS to override.
	HTTPTimeout time.Duration

	// TokenFile is where the auth token is persisted between runs.
	// Defaults to ~/.driverlog/token.
	TokenFile string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string
}

// LoadClient reads client configuration from environment variables.
// Returns an error listing any required variables that are not set.
func LoadClient() (Client, error) {
	cfg := Client{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPTimeout: 30 * time.Second,
	}

	if raw := os.Getenv("HTTP_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return Client{}, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be a positive integer, got %q", raw)
		}
		cfg.HTTPTimeout = time.Duration(secs) * time.Second
	}

	cfg.TokenFile = os.Getenv("TOKEN_FILE")
	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Client{}, fmt.Errorf("TOKEN_FILE not set and home directory unknown: %w", err)
		}
		cfg.TokenFile = filepath.Join(home, ".driverlog", "token")
	}

	var missing []string
	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}
	if len(missing) > 0 {
		return Client{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// Stub holds all configuration for the development stub server.
type Stub struct {
	// Port is the TCP port the stub server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// JWTSecret signs the stub's access tokens. Defaults to a development
	// value; the stub never runs in production.
	JWTSecret string
}

// LoadStub reads stub-server configuration from environment variables.
// Everything has a default; the stub must start with zero setup.
func LoadStub() Stub {
	return Stub{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		JWTSecret:   getEnv("JWT_SECRET", "driverlog-dev-secret"),
	}
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

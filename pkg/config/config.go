// Package config loads and validates the orchestrator's environment-based
// configuration (spec.md §6's recognized environment variables).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the orchestrator's process-wide configuration, built once at
// startup and never mutated afterward.
type Config struct {
	DatabaseURL string

	GoogleAPIKey string

	CORSOrigins []string

	SecretKey          string
	TokenExpiryMinutes int

	HTTPPort string
	GinMode  string

	ScratchRoot string
}

// Load reads a .env file (if present) under dir, then builds a Config
// from the environment. It does not validate — call (*Config).Validate
// or use a Validator for that, matching the teacher's
// load-then-validate-separately split.
func Load(dir string) (*Config, error) {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	expiry, err := strconv.Atoi(getEnvOrDefault("PLATFORM_TOKEN_EXPIRY", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_TOKEN_EXPIRY: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        os.Getenv("PLATFORM_DATABASE_URL"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		CORSOrigins:        splitCommaList(os.Getenv("CORS_ORIGINS")),
		SecretKey:          os.Getenv("PLATFORM_SECRET_KEY"),
		TokenExpiryMinutes: expiry,
		HTTPPort:           getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:            getEnvOrDefault("GIN_MODE", "release"),
		ScratchRoot:        getEnvOrDefault("SANDBOX_SCRATCH_ROOT", "/tmp/genforge-sandbox"),
	}
	return cfg, nil
}

func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

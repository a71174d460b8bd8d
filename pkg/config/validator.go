package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, failing fast on the first problem found.
type Validator struct {
	cfg *Config
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates in order: database → secrets → LLM/embeddings →
// auth → server. Earlier sections are validated first because later
// sections assume they hold.
func (v *Validator) ValidateAll() error {
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database configuration invalid: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("LLM configuration invalid: %w", err)
	}
	if err := v.validateAuth(); err != nil {
		return fmt.Errorf("auth configuration invalid: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	if v.cfg.DatabaseURL == "" {
		return fmt.Errorf("PLATFORM_DATABASE_URL is required")
	}
	return nil
}

func (v *Validator) validateLLM() error {
	if v.cfg.GoogleAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is required (used for embeddings and the default LLM provider)")
	}
	return nil
}

func (v *Validator) validateAuth() error {
	if v.cfg.SecretKey == "" {
		return fmt.Errorf("PLATFORM_SECRET_KEY is required")
	}
	if len(v.cfg.SecretKey) < 16 {
		return fmt.Errorf("PLATFORM_SECRET_KEY must be at least 16 characters, got %d", len(v.cfg.SecretKey))
	}
	if v.cfg.TokenExpiryMinutes < 1 {
		return fmt.Errorf("PLATFORM_TOKEN_EXPIRY must be at least 1 minute, got %d", v.cfg.TokenExpiryMinutes)
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	return nil
}

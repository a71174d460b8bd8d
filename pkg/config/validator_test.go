package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:        "postgres://genforge:pw@localhost:5432/genforge",
		GoogleAPIKey:       "test-api-key",
		SecretKey:          "a-secret-key-at-least-16-chars",
		TokenExpiryMinutes: 30,
		HTTPPort:           "8080",
	}
}

func TestValidator_ValidateAll_AcceptsCompleteConfig(t *testing.T) {
	err := NewValidator(validConfig()).ValidateAll()
	assert.NoError(t, err)
}

func TestValidator_ValidateAll_RejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := NewValidator(cfg).ValidateAll()

	assert.ErrorContains(t, err, "PLATFORM_DATABASE_URL")
}

func TestValidator_ValidateAll_RejectsMissingGoogleAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.GoogleAPIKey = ""

	err := NewValidator(cfg).ValidateAll()

	assert.ErrorContains(t, err, "GOOGLE_API_KEY")
}

func TestValidator_ValidateAll_RejectsShortSecretKey(t *testing.T) {
	cfg := validConfig()
	cfg.SecretKey = "tooshort"

	err := NewValidator(cfg).ValidateAll()

	assert.ErrorContains(t, err, "PLATFORM_SECRET_KEY")
}

func TestValidator_ValidateAll_StopsAtFirstFailureInOrder(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.GoogleAPIKey = ""

	err := NewValidator(cfg).ValidateAll()

	assert.ErrorContains(t, err, "database configuration invalid")
}

func TestSplitCommaList_TrimsAndDropsEmpties(t *testing.T) {
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, splitCommaList(" http://a.com ,http://b.com,"))
	assert.Nil(t, splitCommaList(""))
}

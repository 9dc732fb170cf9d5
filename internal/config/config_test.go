package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		ModerationMaxWarnings:    5,
		ModerationMaxRetries:     3,
		ModerationSeverityTable:  "0:none,1:low,2:medium,4:high,5:critical",
		TracingSampleRatio:       1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateModerationSettings(t *testing.T) {
	c := validConfig()
	c.ModerationSeverityTable = "0:none,3:high,2:medium"
	assert.Error(t, c.Validate(), "non-monotone ladder")

	c = validConfig()
	c.ModerationSeverityTable = "1:low"
	assert.Error(t, c.Validate(), "ladder must start at zero")

	c = validConfig()
	c.ModerationMaxRetries = -1
	assert.Error(t, c.Validate())

	c = validConfig()
	c.ModerationSeverityTable = ""
	c.ModerationMaxWarnings = 0
	engine, err := c.PolicyEngine()
	require.NoError(t, err)
	assert.Equal(t, 5, engine.MaxWarnings())
}

func TestLoadConfig_Normalization(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("MODERATION_MAX_WARNINGS", "3")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 3, c.ModerationMaxWarnings)
	assert.Equal(t, 3, c.ModerationMaxRetries)
	assert.Equal(t, "0:none,1:low,2:medium,4:high,5:critical", c.ModerationSeverityTable)
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductionConfig() *Config {
	return &Config{
		Env:                      "production",
		DBSSLMode:                "require",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBPassword:               "secure-password",
		Port:                     "8080",
		ImageMaxUploadSizeMB:     5,
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
		MidtransServerKey:        "SB-Mid-server-xyz",
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
			c := validProductionConfig()
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

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validProductionConfig()
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c = validProductionConfig()
	c.MidtransServerKey = ""
	assert.ErrorContains(t, c.Validate(), "MIDTRANS_SERVER_KEY")

	c = validProductionConfig()
	c.DBPassword = "password"
	assert.Error(t, c.Validate())

	c = validProductionConfig()
	c.Env = "development"
	c.MidtransServerKey = ""
	assert.NoError(t, c.Validate())

	c = validProductionConfig()
	c.PaymentCurrency = "USD"
	assert.ErrorContains(t, c.Validate(), "PAYMENT_CURRENCY must be IDR")
	c.PaymentCurrency = "IDR"
	assert.NoError(t, c.Validate())
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	c := validProductionConfig()
	c.Port = ""
	c.PaymentCurrency = "RUPIAH"
	c.DBSSLMode = "disable"

	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"PORT is required", "PAYMENT_CURRENCY", "DB_SSLMODE"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadConfig_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("INFLIGHT_TTL", "2m")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 2*time.Minute, c.InFlightTTL)
	assert.Contains(t, c.FeatureFlags, "payment_webhook=on")
}

func TestLoadConfig_ProfileRequiredOutsideDevAndTest(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "config.staging.yml")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	_ = os.Unsetenv("INFLIGHT_TTL")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "USD", c.PaymentCurrency)
	assert.Equal(t, 30*time.Second, c.InFlightTTL)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, "test", c.Env)
}

// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBReadHost     string `mapstructure:"DB_READ_HOST"`
	DBReadPort     string `mapstructure:"DB_READ_PORT"`
	DBReadUser     string `mapstructure:"DB_READ_USER"`
	DBReadPassword string `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`

	DBAutoMigrateAllowDestructive bool `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	DBMaxOpenConns           int `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	// ClientURL is the browser app; payment redirects land there.
	ClientURL      string `mapstructure:"CLIENT_URL"`
	GoogleClientID string `mapstructure:"GOOGLE_CLIENT_ID"`

	MidtransServerKey  string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool   `mapstructure:"MIDTRANS_PRODUCTION"`
	PaymentCurrency    string `mapstructure:"PAYMENT_CURRENCY"`

	ImageUploadDir       string `mapstructure:"UPLOAD_DIR"`
	ImageMaxUploadSizeMB int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`

	// InFlightTTL bounds how long a mutation lock on one application lives
	// if the holder never releases it.
	InFlightTTL time.Duration `mapstructure:"INFLIGHT_TTL"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`
}

// IsProduction reports whether hardening checks apply.
func (c *Config) IsProduction() bool {
	e := strings.ToLower(strings.TrimSpace(c.Env))
	return e == "production" || e == "prod"
}

// defaults are the development values every setting falls back to.
var defaults = map[string]any{
	"PORT":                             "8375",
	"APP_ENV":                          "development",
	"JWT_SECRET":                       defaultJWTSecret,
	"DB_HOST":                          "localhost",
	"DB_PORT":                          "5432",
	"DB_USER":                          "user",
	"DB_PASSWORD":                      "password",
	"DB_NAME":                          "scholarhub",
	"DB_SSLMODE":                       "disable",
	"DB_READ_HOST":                     "",
	"DB_READ_PORT":                     "5432",
	"DB_READ_USER":                     "user",
	"DB_READ_PASSWORD":                 "password",
	"DB_SCHEMA_MODE":                   "hybrid",
	"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE": false,
	"DB_MAX_OPEN_CONNS":                25,
	"DB_MAX_IDLE_CONNS":                10,
	"DB_CONN_MAX_LIFETIME_MINUTES":     30,
	"REDIS_URL":                        "localhost:6379",
	"ALLOWED_ORIGINS":                  "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173",
	"FEATURE_FLAGS":                    "google_login=on,realtime_status=on,payment_webhook=on,image_upload=on",
	"CLIENT_URL":                       "http://localhost:5173",
	"GOOGLE_CLIENT_ID":                 "",
	"MIDTRANS_SERVER_KEY":              "",
	"MIDTRANS_PRODUCTION":              false,
	"PAYMENT_CURRENCY":                 "IDR",
	"UPLOAD_DIR":                       "/tmp/scholarhub/uploads",
	"IMAGE_MAX_UPLOAD_SIZE_MB":         5,
	"INFLIGHT_TTL":                     "30s",
	"TRACING_ENABLED":                  false,
	"TRACING_EXPORTER":                 "stdout",
	"OTEL_EXPORTER_OTLP_ENDPOINT":      "localhost:4318",
	"DEV_BOOTSTRAP_ROOT":               false,
	"DEV_ROOT_EMAIL":                   "root@scholarhub.local",
	"DEV_ROOT_PASSWORD":                "",
}

// LoadConfig layers, lowest first: defaults, config.yml, the
// config.<env>.yml profile, .env, then the process environment.
// Environments other than development and test must ship a profile.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("yml")
	for _, dir := range []string{".", "..", "../.."} {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()

	v.SetConfigName("config")
	_ = v.ReadInConfig()

	env := strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))
	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("profile config.%s.yml is required: %w", env, err)
		}
		slog.Info("loaded profile configuration", slog.String("profile", "config."+env+".yml"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.PaymentCurrency = strings.ToUpper(strings.TrimSpace(c.PaymentCurrency))
}

// Validate reports every problem at once. Production additionally needs
// real secrets, TLS to Postgres and a gateway key.
func (c *Config) Validate() error {
	var problems []error
	check := func(failed bool, msg string) {
		if failed {
			problems = append(problems, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	check(c.ImageMaxUploadSizeMB <= 0, "IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	check(c.DBConnMaxLifetimeMinutes <= 0, "DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	check(c.InFlightTTL < 0, "INFLIGHT_TTL must not be negative")
	check(c.PaymentCurrency != "" && len(c.PaymentCurrency) != 3, "PAYMENT_CURRENCY must be an ISO 4217 code")
	check(c.MidtransServerKey != "" && c.PaymentCurrency != "" && c.PaymentCurrency != "IDR",
		"PAYMENT_CURRENCY must be IDR when MIDTRANS_SERVER_KEY is set")

	if c.IsProduction() {
		check(c.JWTSecret == defaultJWTSecret, "JWT_SECRET must be changed from the default value in production")
		check(len(c.JWTSecret) < 32, "JWT_SECRET must be at least 32 characters in production")
		check(c.DBPassword == "" || c.DBPassword == "password", "a strong DB_PASSWORD is required in production")
		check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
		check(c.MidtransServerKey == "", "MIDTRANS_SERVER_KEY is required in production")
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is '*' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters; production will refuse it")
	}

	return errors.Join(problems...)
}

// Package config loads the identity service configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/GlennOnyango/housing-nest-be/pkg/config"
)

const defaultSecret = "change-this-to-a-secure-secret--"

// Config holds all configuration for the identity service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"IDENTITY_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"housing"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"housing_secret"`
	PostgresDB   string `env:"IDENTITY_DB_NAME" envDefault:"identity_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"10"`
	SlowQueryThresholdMs  int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis (magic-link rate limiting)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	MagicLinkRateLimit  int    `env:"MAGIC_LINK_RATE_LIMIT" envDefault:"3"`
	MagicLinkRateWindow string `env:"MAGIC_LINK_RATE_WINDOW" envDefault:"15m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// JWT. Each auth domain signs with its own key so tokens never cross
	// realms.
	TenantJWTSecret string `env:"TENANT_JWT_SECRET" envDefault:"change-this-to-a-secure-secret--"`
	AdminJWTSecret  string `env:"ADMIN_JWT_SECRET" envDefault:"change-this-to-another-secret---"`
	JWTAccessExpiry string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	MFAPendingTTL   string `env:"MFA_PENDING_TOKEN_EXPIRY" envDefault:"5m"`

	// Opaque token lifetimes
	RefreshTTL      string `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	MagicLinkTTL    string `env:"MAGIC_LINK_TTL" envDefault:"15m"`
	RecoveryCodeTTL string `env:"RECOVERY_CODE_TTL" envDefault:"8760h"`
	InviteTTL       string `env:"INVITE_TTL" envDefault:"168h"`
	InvoiceLinkTTL  string `env:"INVOICE_LINK_TTL" envDefault:"720h"`

	// Lockout policy
	LockoutThreshold int    `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutBase      string `env:"LOCKOUT_BASE" envDefault:"1m"`
	LockoutMax       string `env:"LOCKOUT_MAX" envDefault:"15m"`

	// TOTP
	TOTPIssuer string `env:"TOTP_ISSUER" envDefault:"HousingNest"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load identity config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// Outside development, both signing keys must be explicitly set, strong,
	// and distinct from each other.
	if cfg.Environment != "development" {
		for name, secret := range map[string]string{
			"TENANT_JWT_SECRET": cfg.TenantJWTSecret,
			"ADMIN_JWT_SECRET":  cfg.AdminJWTSecret,
		} {
			if secret == defaultSecret || secret == "change-this-to-another-secret---" {
				return nil, fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, cfg.Environment)
			}
			if len(secret) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(secret))
			}
		}
		if cfg.TenantJWTSecret == cfg.AdminJWTSecret {
			return nil, fmt.Errorf("TENANT_JWT_SECRET and ADMIN_JWT_SECRET must differ")
		}
	}

	for name, value := range map[string]string{
		"JWT_ACCESS_TOKEN_EXPIRY":  cfg.JWTAccessExpiry,
		"MFA_PENDING_TOKEN_EXPIRY": cfg.MFAPendingTTL,
		"REFRESH_TOKEN_TTL":        cfg.RefreshTTL,
		"MAGIC_LINK_TTL":           cfg.MagicLinkTTL,
		"RECOVERY_CODE_TTL":        cfg.RecoveryCodeTTL,
		"INVITE_TTL":               cfg.InviteTTL,
		"INVOICE_LINK_TTL":         cfg.InvoiceLinkTTL,
		"LOCKOUT_BASE":             cfg.LockoutBase,
		"LOCKOUT_MAX":              cfg.LockoutMax,
		"MAGIC_LINK_RATE_WINDOW":   cfg.MagicLinkRateWindow,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if cfg.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1, got %d", cfg.LockoutThreshold)
	}

	return cfg, nil
}

// Duration returns the parsed duration for a value already validated by Load.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

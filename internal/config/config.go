package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// BaseURL is the public origin the Toss widget redirects back to.
	BaseURL string `env:"BASE_URL,required" validate:"required,url"`

	TossSecretKey string `env:"TOSS_SECRET_KEY,required" validate:"required"`
	TossClientKey string `env:"TOSS_CLIENT_KEY,required" validate:"required"`
	TossAPIBase   string `env:"TOSS_API_BASE" envDefault:"https://api.tosspayments.com" validate:"required,url"`

	CacheProvider        string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	SessionStoreProvider string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisAddr            string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	AdminEmail     string `env:"ADMIN_EMAIL,required" validate:"required,email"`
	AdminPassword  string `env:"ADMIN_PASSWORD,required" validate:"required,min=12"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET,required" validate:"required,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" validate:"required_with=ResendAPIKey,omitempty,email"`

	// ShopPolicyPath points at the optional YAML policy file; when empty the
	// built-in defaults apply.
	ShopPolicyPath string `env:"SHOP_POLICY_PATH"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	if !strings.HasPrefix(c.TossSecretKey, "test_sk_") && !strings.HasPrefix(c.TossSecretKey, "live_sk_") {
		return fmt.Errorf("TOSS_SECRET_KEY must be a Toss secret key")
	}

	return nil
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return true
	}
	return !isLocalHost(parsed.Hostname())
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

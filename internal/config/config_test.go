package config

import (
	"log/slog"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:          "postgres://localhost:5432/podomall",
		BaseURL:              "https://shop.example.com",
		TossSecretKey:        "test_sk_0000000000000000",
		TossClientKey:        "test_ck_0000000000000000",
		TossAPIBase:          "https://api.tosspayments.com",
		CacheProvider:        "memory",
		SessionStoreProvider: "memory",
		RedisAddr:            "localhost:6379",
		EncryptionKey:        strings.Repeat("k", 32),
		AdminEmail:           "admin@example.com",
		AdminPassword:        strings.Repeat("p", 16),
		AdminJWTSecret:       strings.Repeat("s", 32),
		LogLevel:             slog.LevelInfo,
		LogFormat:            "text",
		Port:                 "8080",
	}
}

func TestValidateEncryptionKeyLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		encryptionKey string
		wantErr       bool
	}{
		{
			name:          "valid 32-byte key",
			encryptionKey: strings.Repeat("k", 32),
			wantErr:       false,
		},
		{
			name:          "invalid short key",
			encryptionKey: "short",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.EncryptionKey = tt.encryptionKey

			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateTossSecretKeyPrefix(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.TossSecretKey = "sk_not_a_toss_key"

	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidateBaseURLRequiresHTTPS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https origin", baseURL: "https://shop.example.com", wantErr: false},
		{name: "plain http localhost allowed", baseURL: "http://localhost:8080", wantErr: false},
		{name: "plain http public origin rejected", baseURL: "http://shop.example.com", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.BaseURL = tt.baseURL

			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateRedisAddrForSessionStore(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SessionStoreProvider = "redis"
	cfg.RedisAddr = ""

	err := cfg.validate()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "RedisAddr") || !strings.Contains(err.Error(), "required_if") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSecureCookies(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if !cfg.SecureCookies() {
		t.Fatalf("expected secure cookies for public origin")
	}

	cfg.BaseURL = "http://localhost:8080"
	if cfg.SecureCookies() {
		t.Fatalf("expected insecure cookies for localhost")
	}
}

package session

import (
	"context"
	"fmt"
)

// Config selects the backing store for customer sessions.
type Config struct {
	Provider      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewStore builds the configured session store; memory is the default.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported session store provider: %s", cfg.Provider)
	}
}

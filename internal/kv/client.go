// Package kv wraps the ephemeral redis store. Three namespaces live here,
// each with its own expiry policy: the access-token denylist (TTL bounded
// by token lifetime), the active-session hash registry (no implicit TTL)
// and one-time verification codes (short fixed TTL).
package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect creates a redis client and verifies the connection. The caller
// owns the client lifecycle and must Close it on shutdown.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cant connect to redis. Err: %w", err)
	}

	return client, nil
}

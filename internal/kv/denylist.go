package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "denylist"

// Denylist holds revoked access token ids. Every entry carries a TTL equal
// to the token's remaining validity, so the set stays bounded: once a token
// expires on its own the marker is pointless and redis drops it.
type Denylist struct {
	client *redis.Client
}

func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

func (d *Denylist) key(tokenID string) string {
	return denylistPrefix + ":" + tokenID
}

// Add marks a token id revoked. A non-positive ttl means the token already
// expired and there is nothing to deny.
func (d *Denylist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, d.key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("denylist error: %w", err)
	}
	return nil
}

func (d *Denylist) IsDenied(ctx context.Context, tokenID string) (bool, error) {
	err := d.client.Get(ctx, d.key(tokenID)).Err()

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("denylist error: %w", err)
	}
}

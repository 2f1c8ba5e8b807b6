package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const registryPrefix = "checkin"

// HashRegistry maps opaque check-in hashes to service session ids. Entries
// have no implicit expiry: they live until the owning session is deleted.
// When product decides open sessions should close on their own, set TTL.
type HashRegistry struct {
	client *redis.Client

	// TTL for new entries. Zero means no expiry.
	TTL time.Duration
}

func NewHashRegistry(client *redis.Client) *HashRegistry {
	return &HashRegistry{client: client}
}

func (r *HashRegistry) key(hash string) string {
	return registryPrefix + ":" + hash
}

func (r *HashRegistry) Put(ctx context.Context, hash string, sessionID int64) error {
	err := r.client.Set(ctx, r.key(hash), strconv.FormatInt(sessionID, 10), r.TTL).Err()
	if err != nil {
		return fmt.Errorf("hash registry error: %w", err)
	}
	return nil
}

// Resolve returns the session id the hash was minted for.
func (r *HashRegistry) Resolve(ctx context.Context, hash string) (int64, error) {
	value, err := r.client.Get(ctx, r.key(hash)).Result()

	switch {
	case err == nil:
		// fallthrough to parse
	case errors.Is(err, redis.Nil):
		return 0, ErrKeyNotFound
	default:
		return 0, fmt.Errorf("hash registry error: %w", err)
	}

	sessionID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("hash registry holds malformed session id %q: %w", value, err)
	}

	return sessionID, nil
}

// List enumerates all registry entries keyed by hash. Uses SCAN, so it is
// safe against large keyspaces but only eventually consistent with
// concurrent writers.
func (r *HashRegistry) List(ctx context.Context) (map[string]int64, error) {
	entries := make(map[string]int64)

	iter := r.client.Scan(ctx, 0, registryPrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		hash := key[len(registryPrefix)+1:]

		value, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hash registry error: %w", err)
		}

		sessionID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hash registry holds malformed session id %q: %w", value, err)
		}
		entries[hash] = sessionID
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("hash registry error: %w", err)
	}

	return entries, nil
}

// DeleteSession removes every hash minted for the given session. Called by
// the external session-delete trigger.
func (r *HashRegistry) DeleteSession(ctx context.Context, sessionID int64) error {
	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, 1)
	for hash, id := range entries {
		if id == sessionID {
			keys = append(keys, r.key(hash))
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("hash registry error: %w", err)
	}
	return nil
}

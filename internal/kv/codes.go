package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("key not found")

const codesPrefix = "verify"

// CodeStore keeps one-time codes (email verification, password reset) with
// a fixed short TTL. Consume is atomic: concurrent consumers of the same
// code see exactly one success.
type CodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCodeStore(client *redis.Client, ttl time.Duration) *CodeStore {
	return &CodeStore{client: client, ttl: ttl}
}

func (s *CodeStore) key(code string) string {
	return codesPrefix + ":" + code
}

func (s *CodeStore) Put(ctx context.Context, code string, username string) error {
	if err := s.client.Set(ctx, s.key(code), username, s.ttl).Err(); err != nil {
		return fmt.Errorf("code store error: %w", err)
	}
	return nil
}

// Consume returns the username the code was minted for and removes the
// code in the same operation (GETDEL).
func (s *CodeStore) Consume(ctx context.Context, code string) (string, error) {
	username, err := s.client.GetDel(ctx, s.key(code)).Result()

	switch {
	case err == nil:
		return username, nil
	case errors.Is(err, redis.Nil):
		return "", ErrKeyNotFound
	default:
		return "", fmt.Errorf("code store error: %w", err)
	}
}

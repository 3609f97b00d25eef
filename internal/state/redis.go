package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statePrefix = "state:"

// RedisStore implements the Store interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed state store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put records a token with expiration.
func (s *RedisStore) Put(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty state token")
	}

	if err := s.client.Set(ctx, statePrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing state token: %w", err)
	}

	return nil
}

// Take removes the token, reporting whether it existed. GETDEL makes the
// consume atomic, so two concurrent callbacks cannot both succeed.
func (s *RedisStore) Take(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	if err := s.client.GetDel(ctx, statePrefix+token).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("consuming state token: %w", err)
	}

	return true, nil
}

// CheckHealth verifies Redis connectivity.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

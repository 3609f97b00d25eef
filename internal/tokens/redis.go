package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// recordKey is the single well-known key holding the token record. No TTL:
// the record's own expiresOn governs staleness, and an expired record with a
// refresh token is still valuable.
const recordKey = "mailtoken:record"

// RedisStore implements the Store interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads the persisted record. A missing key or an unparseable value
// both yield nil, nil.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil
	}
	if rec.AccessToken == "" {
		return nil, nil
	}

	return &rec, nil
}

// Save replaces the persisted record. Redis SET replaces the value in one
// step, so readers never see a partial record.
func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling token record: %w", err)
	}

	if err := s.client.Set(ctx, recordKey, data, 0).Err(); err != nil {
		return fmt.Errorf("saving token record: %w", err)
	}

	return nil
}

// CheckHealth verifies Redis connectivity.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

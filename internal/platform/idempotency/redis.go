package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idem:"

// RedisStore keeps records in Redis so replays survive restarts and work
// across instances.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Reserve claims key with SET NX, or decodes whatever record holds it.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Record, error) {
	record := Record{Fingerprint: fingerprint, CreatedAt: now}
	data, err := json.Marshal(record)
	if err != nil {
		return StateNew, Record{}, fmt.Errorf("idempotency: marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, data, ttl).Result()
	if err != nil {
		return StateNew, Record{}, fmt.Errorf("idempotency: redis setnx: %w", err)
	}
	if ok {
		return StateNew, record, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; the caller may retry.
		return StatePending, Record{}, nil
	}
	if err != nil {
		return StateNew, Record{}, fmt.Errorf("idempotency: redis get: %w", err)
	}
	var existing Record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return StateNew, Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return stateOf(existing, fingerprint)
}

// Complete overwrites the reservation with the captured response.
func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	data, err := json.Marshal(Record{Fingerprint: fingerprint, Completed: true, Response: resp, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("idempotency: marshal record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: redis set: %w", err)
	}
	return nil
}

// Release deletes the reservation.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency: redis del: %w", err)
	}
	return nil
}

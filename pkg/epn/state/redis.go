package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sitrep:state:"

// RedisStore persists processor state in Redis so it survives engine
// restarts. An optional TTL bounds how long idle correlation state is kept.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis using the given URL
// (e.g. redis://localhost:6379/0) and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, processorID, partitionKey string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisStateKey(processorID, partitionKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read processor state: %w", err)
	}

	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, processorID, partitionKey string, value []byte) error {
	err := s.client.Set(ctx, redisStateKey(processorID, partitionKey), value, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to write processor state: %w", err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, processorID, partitionKey string) error {
	err := s.client.Del(ctx, redisStateKey(processorID, partitionKey)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete processor state: %w", err)
	}

	return nil
}

func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}

func redisStateKey(processorID, partitionKey string) string {
	return redisKeyPrefix + processorID + ":" + partitionKey
}

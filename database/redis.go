package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient initializes and returns a Redis client
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// ResponseCache records the outcome of a respond call per request ID
// so that a retried respond (timeout, unknown outcome) returns the
// recorded result instead of replaying side effects.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

func (c *ResponseCache) key(requestID string) string {
	return fmt.Sprintf("respond:request:%s", requestID)
}

// Get returns the recorded outcome for a request, or "" when none.
func (c *ResponseCache) Get(ctx context.Context, requestID string) (string, error) {
	val, err := c.client.Get(ctx, c.key(requestID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set records the outcome of a completed respond call.
func (c *ResponseCache) Set(ctx context.Context, requestID, outcome string) error {
	return c.client.Set(ctx, c.key(requestID), outcome, c.ttl).Err()
}

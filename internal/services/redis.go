package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks Redis availability
type RedisChecker struct {
	BaseChecker
	client *redis.Client
}

// NewRedisChecker creates a checker with its own client
func NewRedisChecker(address, password string, db int) *RedisChecker {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisCheckerFromClient(client)
}

// NewRedisCheckerFromClient wraps an existing client
func NewRedisCheckerFromClient(client *redis.Client) *RedisChecker {
	return &RedisChecker{
		BaseChecker: BaseChecker{checkerType: "redis"},
		client:      client,
	}
}

// HealthCheck pings Redis
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the client
func (r *RedisChecker) Close() error {
	return r.client.Close()
}

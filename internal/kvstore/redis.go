package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis keys "<prefix>:<scope>:<key>".
// The scope is query-escaped so it never holds a separator or glob character.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "maturity"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, url.QueryEscape(scope), key)
}

// scopeOf reverses key for a Redis key matched by the scan pattern
func (s *RedisStore) scopeOf(redisKey, key string) (string, bool) {
	escaped, ok := strings.CutPrefix(redisKey, s.prefix+":")
	if !ok {
		return "", false
	}
	escaped, ok = strings.CutSuffix(escaped, ":"+key)
	if !ok || escaped == "" || strings.Contains(escaped, ":") {
		return "", false
	}
	scope, err := url.QueryUnescape(escaped)
	if err != nil {
		return "", false
	}
	return scope, true
}

// Get returns the value stored under key
func (s *RedisStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(scope, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key without expiry
func (s *RedisStore) Put(ctx context.Context, scope, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(scope, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, scope, key string) error {
	if err := s.client.Del(ctx, s.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Scopes scans for every scope holding key
func (s *RedisStore) Scopes(ctx context.Context, key string) ([]string, error) {
	pattern := fmt.Sprintf("%s:*:%s", s.prefix, key)

	var scopes []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, k := range keys {
			if scope, ok := s.scopeOf(k, key); ok {
				scopes = append(scopes, scope)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(scopes)
	return scopes, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

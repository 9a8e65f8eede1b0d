package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps namespaced values in Redis under "quill:<namespace>:<key>".
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	owned  bool
}

// RedisOptions describes how to reach the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// DialRedis connects and pings the server so misconfiguration fails at startup.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedisStore scopes client to namespace. When owned is true Close also
// closes the client.
func NewRedisStore(client *redis.Client, namespace string, owned bool, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "quill:" + strings.ToLower(namespace) + ":",
		logger: discardLogger(logger),
		owned:  owned,
	}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		r.logger.Warn("session read failed", "key", r.key(key), "error", err)
		return "", false
	}
	return val, true
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("store session value: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("clear session value: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

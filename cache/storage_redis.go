package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 2 * time.Second

// RedisStorage is the Redis-backed durable tier.
type RedisStorage struct {
	client  *redis.Client
	prefix  string
	expiry  time.Duration
	timeout time.Duration
}

// NewRedisStorage wraps client. Keys are stored under prefix; expiry 0 keeps them forever.
func NewRedisStorage(client *redis.Client, prefix string, expiry time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, expiry: expiry, timeout: defaultRedisTimeout}
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.prefix+key, value, r.expiry).Err()
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Del(ctx, r.prefix+key).Err()
}

// RemovePrefix deletes keys matching prefix, scanning until the cursor wraps
// or ctx ends. Glob metacharacters in prefix are matched literally.
func (r *RedisStorage) RemovePrefix(ctx context.Context, prefix string) error {
	match := globEscaper.Replace(r.prefix+prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, 1000).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del %s: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

package utils

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked token IDs until they would have expired.
// It prefers Redis and falls back to process memory when no client is set.
type TokenBlacklist struct {
	redis *redis.Client
	mem   *gocache.Cache
}

func NewTokenBlacklist(client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{redis: client, mem: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Revoke blacklists id until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, id string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if b.redis != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := b.redis.Set(ctx, blacklistPrefix+id, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("token blacklist write failed, keeping in memory", zap.Error(err))
	}
	b.mem.Set(id, struct{}{}, ttl)
}

// Revoked reports whether id was revoked. Redis errors fail open.
func (b *TokenBlacklist) Revoked(ctx context.Context, id string) bool {
	if _, ok := b.mem.Get(id); ok {
		return true
	}
	if b.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := b.redis.Exists(ctx, blacklistPrefix+id).Result()
	if err != nil {
		Logger.Warn("token blacklist read failed", zap.Error(err))
		return false
	}
	return n > 0
}

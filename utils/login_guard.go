package utils

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

func guardKey(parts ...string) string {
	key := "login"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// LoginGuard bans a client IP for a while after too many failed logins within an hour.
// Counters live in Redis when available and in memory otherwise. Redis errors fail open.
type LoginGuard struct {
	redis       *redis.Client
	mem         *gocache.Cache
	maxFailures int
	ban         time.Duration
	now         func() time.Time
}

func NewLoginGuard(client *redis.Client, maxFailures int, ban time.Duration) *LoginGuard {
	if maxFailures <= 0 {
		maxFailures = 20
	}
	if ban <= 0 {
		ban = time.Hour
	}
	return &LoginGuard{
		redis:       client,
		mem:         gocache.New(time.Hour, 10*time.Minute),
		maxFailures: maxFailures,
		ban:         ban,
		now:         time.Now,
	}
}

// Banned reports whether ip is currently banned.
func (g *LoginGuard) Banned(ctx context.Context, ip string) bool {
	key := guardKey("ban", ip)
	if g.redis == nil {
		_, ok := g.mem.Get(key)
		return ok
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := g.redis.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// RecordFailure counts a failed login for ip and bans it once the hourly limit is reached.
func (g *LoginGuard) RecordFailure(ctx context.Context, ip string) int {
	key := guardKey("failhour", ip, g.now().Format("2006010215"))
	var n int
	if g.redis == nil {
		_ = g.mem.Add(key, 0, time.Hour)
		n, _ = g.mem.IncrementInt(key, 1)
	} else {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		v, err := g.redis.Incr(ctx, key).Result()
		if err != nil {
			return 0
		}
		_ = g.redis.Expire(ctx, key, time.Hour).Err()
		n = int(v)
	}
	if n >= g.maxFailures {
		g.banIP(ctx, ip)
	}
	return n
}

// Reset clears the failure counter of ip after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, ip string) {
	key := guardKey("failhour", ip, g.now().Format("2006010215"))
	if g.redis == nil {
		g.mem.Delete(key)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = g.redis.Del(ctx, key).Err()
}

func (g *LoginGuard) banIP(ctx context.Context, ip string) {
	key := guardKey("ban", ip)
	if g.redis == nil {
		g.mem.Set(key, struct{}{}, g.ban)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = g.redis.Set(ctx, key, "1", g.ban).Err()
}

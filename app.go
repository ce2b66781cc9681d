package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/moodlog/cache"
	"github.com/cppla/moodlog/config"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/routes"
	"github.com/cppla/moodlog/services"
	"github.com/cppla/moodlog/utils"
)

const (
	redisKeyPrefix    = "moodlog:"
	loginMaxFailures  = 20
	loginBanDuration  = time.Hour
	cacheCloseTimeout = 5 * time.Second
)

func boot() (config.AppConfig, error) {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runMigrate() error {
	cfg, err := boot()
	if err != nil {
		return err
	}
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := config.Migrate(db); err != nil {
		return err
	}
	utils.Sugar.Infof("schema migrated on %s", cfg.DBDriver)
	return nil
}

// cacheTier is the durable storage selected by CACHE_TIER plus the scratch store.
// Scratch keeps submissions whose database write failed, so it never lives in the database.
type cacheTier struct {
	durable cache.Storage
	scratch cache.Storage
	sweeper *utils.CacheSweeper
}

func buildCacheTier(cfg config.AppConfig, db *gorm.DB, rdb *redis.Client, policy cache.Policy) (cacheTier, error) {
	switch cfg.CacheTier {
	case "redis":
		if rdb == nil {
			return cacheTier{}, fmt.Errorf("cache tier redis requires a redis connection")
		}
		return cacheTier{
			durable: cache.NewRedisStorage(rdb, redisKeyPrefix, policy.MaxTTL()),
			scratch: scratchStorage(rdb),
		}, nil
	case "database":
		g := cache.NewGormStorage(db)
		return cacheTier{
			durable: g,
			scratch: scratchStorage(rdb),
			sweeper: utils.NewCacheSweeper(g, cache.Namespace, policy.MaxTTL()),
		}, nil
	case "memory":
		return cacheTier{scratch: cache.NewMemoryStorage()}, nil
	default:
		return cacheTier{}, fmt.Errorf("unknown CACHE_TIER %q", cfg.CacheTier)
	}
}

func scratchStorage(rdb *redis.Client) cache.Storage {
	if rdb != nil {
		return cache.NewRedisStorage(rdb, redisKeyPrefix, 0)
	}
	return cache.NewMemoryStorage()
}

func runServe(migrate bool) error {
	cfg, err := boot()
	if err != nil {
		return err
	}
	log := utils.Logger

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if migrate {
		if err := config.Migrate(db); err != nil {
			return err
		}
	}

	rdb, err := utils.InitRedis(cfg)
	if err != nil {
		log.Warn("redis unavailable", zap.String("host", cfg.RedisHost), zap.Error(err))
		if cfg.CacheTier != "redis" {
			_ = rdb.Close()
			utils.SetRedis(nil)
			rdb = nil
		}
	}

	var registry *prometheus.Registry
	var cacheMetrics *cache.Metrics
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		cacheMetrics = cache.NewMetrics(registry)
	}

	policy := cfg.CachePolicy()
	tier, err := buildCacheTier(cfg, db, rdb, policy)
	if err != nil {
		return err
	}
	store := cache.NewStore(cache.Options{
		Policy:  policy,
		Durable: tier.durable,
		Logger:  log.Named("cache"),
		Metrics: cacheMetrics,
	})

	users := repository.NewUserRepository(db)
	moods := services.NewMoodService(services.Deps{
		Repo:     repository.NewMoodRepository(db),
		Tiers:    users,
		Sessions: services.ContextSessions{},
		Cache:    store,
		Shadow:   cache.NewShadow(),
		Scratch:  services.NewScratch(tier.scratch),
		Location: utils.LoadLocation(cfg.DefaultTimezone, time.UTC),
		Logger:   log.Named("moods"),
	})

	if tier.sweeper != nil {
		if err := tier.sweeper.Start(cfg.CacheSweepSchedule); err != nil {
			return err
		}
	}

	r := routes.SetupRouter(routes.Deps{
		Config:    cfg,
		DB:        db,
		Moods:     moods,
		Users:     users,
		Blacklist: utils.NewTokenBlacklist(rdb),
		Guard:     utils.NewLoginGuard(rdb, loginMaxFailures, loginBanDuration),
		Registry:  registry,
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, utils.DefaultReadTimeout, utils.DefaultWriteTimeout)
	srv.OnShutdown(func(context.Context) {
		if tier.sweeper != nil {
			_ = tier.sweeper.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), cacheCloseTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Warn("cache close did not drain", zap.Error(err))
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = log.Sync()
	})

	utils.Sugar.Infof("Starting server on port %s (graceful, cache tier %s)", cfg.AppPort, cfg.CacheTier)
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

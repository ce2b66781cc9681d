package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cppla/moodlog/cache"
	"github.com/cppla/moodlog/config"
	"github.com/cppla/moodlog/repository"
	"github.com/cppla/moodlog/services"
)

func sqliteConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		LogLevel:    "silent",
		CacheTier:   "database",
	}
}

func TestDatabaseTierKeepsScratchWhenDatabaseIsDown(t *testing.T) {
	cfg := sqliteConfig(t)
	db, err := config.OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tier, err := buildCacheTier(cfg, db, nil, cache.DefaultPolicy())
	if err != nil {
		t.Fatalf("build tier: %v", err)
	}
	if _, ok := tier.scratch.(*cache.GormStorage); ok {
		t.Fatalf("scratch must not share the database")
	}
	store := cache.NewStore(cache.Options{Durable: tier.durable})
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	moods := services.NewMoodService(services.Deps{
		Repo:    repository.NewMoodRepository(db),
		Cache:   store,
		Scratch: services.NewScratch(tier.scratch),
	})

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	_ = sqlDB.Close()

	ctx := services.WithSession(context.Background(), services.Session{UserID: "u1"})
	if _, err := moods.SaveMoodEntry(ctx, 4, "offline day"); !errors.Is(err, services.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	got, ok := moods.PendingMoodEntry(ctx)
	if !ok || got.Rating != 4 || got.Details != "offline day" {
		t.Fatalf("expected pending submission to survive, got %+v ok=%v", got, ok)
	}
}

func TestBuildCacheTier(t *testing.T) {
	cfg := sqliteConfig(t)
	policy := cache.DefaultPolicy()

	cfg.CacheTier = "redis"
	if _, err := buildCacheTier(cfg, nil, nil, policy); err == nil {
		t.Errorf("redis tier without a connection should fail")
	}

	cfg.CacheTier = "memory"
	tier, err := buildCacheTier(cfg, nil, nil, policy)
	if err != nil || tier.durable != nil || tier.scratch == nil {
		t.Errorf("memory tier: %+v %v", tier, err)
	}

	cfg.CacheTier = "disk"
	if _, err := buildCacheTier(cfg, nil, nil, policy); err == nil {
		t.Errorf("unknown tier should fail")
	}
}

package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken("secret", "u1", "alice", "Europe/Paris", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken("secret", tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Username != "alice" || claims.Timezone != "Europe/Paris" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseToken("other", tok); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}
	expired, _ := GenerateToken("secret", "u1", "alice", "", -time.Minute)
	if _, err := ParseToken("secret", expired); err == nil {
		t.Fatal("expected expired token to fail")
	}
	if _, err := GenerateToken("", "u1", "alice", "", time.Hour); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestPassword(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") || CheckPassword(hash, "wrong horse") {
		t.Fatal("password check mismatch")
	}
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"good day":                      "good day",
		"<b>bold</b> move":              "bold move",
		"tea & cake":                    "tea & cake",
		"<script>alert(1)</script>ok  ": "ok",
	}
	for in, want := range cases {
		if got := SanitizeText(in); got != want {
			t.Errorf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenBlacklist(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	for name, bl := range map[string]*TokenBlacklist{
		"redis":  NewTokenBlacklist(client),
		"memory": NewTokenBlacklist(nil),
	} {
		if bl.Revoked(ctx, "jti-1") {
			t.Errorf("%s: unexpected revoked token", name)
		}
		bl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour))
		if !bl.Revoked(ctx, "jti-1") {
			t.Errorf("%s: expected revoked token", name)
		}
		bl.Revoke(ctx, "jti-2", time.Now().Add(-time.Hour))
		if bl.Revoked(ctx, "jti-2") {
			t.Errorf("%s: already expired token should not be stored", name)
		}
	}
	if !mr.Exists(blacklistPrefix + "jti-1") {
		t.Error("expected blacklist key in redis")
	}
}

func TestLoginGuardBansAfterLimit(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	for name, g := range map[string]*LoginGuard{
		"redis":  NewLoginGuard(client, 3, time.Minute),
		"memory": NewLoginGuard(nil, 3, time.Minute),
	} {
		for i := 1; i <= 2; i++ {
			if n := g.RecordFailure(ctx, "1.2.3.4"); n != i {
				t.Errorf("%s: failure count %d, want %d", name, n, i)
			}
		}
		if g.Banned(ctx, "1.2.3.4") {
			t.Errorf("%s: banned too early", name)
		}
		g.RecordFailure(ctx, "1.2.3.4")
		if !g.Banned(ctx, "1.2.3.4") {
			t.Errorf("%s: expected ban after limit", name)
		}
		if g.Banned(ctx, "5.6.7.8") {
			t.Errorf("%s: other ip must not be banned", name)
		}
	}
}

type fakeSweeper struct {
	prefix string
	before time.Time
}

func (f *fakeSweeper) Sweep(_ context.Context, prefix string, before time.Time) (int64, error) {
	f.prefix, f.before = prefix, before
	return 2, nil
}

func TestCacheSweeper(t *testing.T) {
	target := &fakeSweeper{}
	s := NewCacheSweeper(target, "cache:", 4*time.Hour)
	now := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}
	if target.prefix != "cache:" || !target.before.Equal(now.Add(-4*time.Hour)) {
		t.Fatalf("unexpected sweep args %q %v", target.prefix, target.before)
	}
	if err := s.Start("not a cron"); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := s.Start("*/5 * * * *"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRecoveryWithZap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Ginzap(zap.NewNop(), time.RFC3339, true), RecoveryWithZap(zap.NewNop(), true))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cppla/moodlog/services"
	"github.com/cppla/moodlog/utils"
)

const secret = "middleware-secret"

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) {
		sess, ok := services.SessionFrom(c.Request.Context())
		loc := ""
		if sess.Location != nil {
			loc = sess.Location.String()
		}
		c.JSON(http.StatusOK, gin.H{"user": sess.UserID, "ok": ok, "loc": loc})
	})...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	bl := utils.NewTokenBlacklist(nil)
	auth := &Auth{Secret: secret, Blacklist: bl, DefaultLocation: time.UTC}
	token, err := utils.GenerateToken(secret, "u1", "alice", "Asia/Tokyo", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, _ := utils.ParseToken(secret, token)

	tests := []struct {
		name     string
		handler  gin.HandlerFunc
		token    string
		revoke   bool
		wantCode int
		wantBody string
	}{
		{"required without token", auth.Required(), "", false, http.StatusUnauthorized, ""},
		{"required with garbage", auth.Required(), "garbage", false, http.StatusUnauthorized, ""},
		{"required with token", auth.Required(), token, false, http.StatusOK, `"user":"u1"`},
		{"optional without token", auth.Optional(), "", false, http.StatusOK, `"ok":false`},
		{"optional with token", auth.Optional(), token, false, http.StatusOK, `"loc":"Asia/Tokyo"`},
		{"required with revoked", auth.Required(), token, true, http.StatusUnauthorized, ""},
		{"optional with revoked", auth.Optional(), token, true, http.StatusOK, `"ok":false`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.revoke {
				bl.Revoke(context.Background(), claims.ID, time.Now().Add(time.Hour))
			}
			w := get(newEngine(tt.handler), tt.token)
			if w.Code != tt.wantCode {
				t.Fatalf("status %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("body %s does not contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(4) // burst 2
	r := newEngine(rl.Middleware())
	for i := 0; i < 2; i++ {
		if w := get(r, ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	if w := get(r, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	now := time.Now()
	if !rl.allow("other", now) {
		t.Fatal("separate key should have its own bucket")
	}
	rl.allow("stale", now)
	rl.allow("other", now.Add(limiterIdle+time.Second))
	if _, ok := rl.limiters["stale"]; ok {
		t.Fatal("idle limiter should be evicted")
	}
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := newEngine(m.Middleware())
	get(r, "")
	get(r, "")
	if got := testutil.ToFloat64(m.requests.WithLabelValues("/", http.MethodGet, "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

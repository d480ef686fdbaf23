package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/metrik/metrik/internal/observability"
	"github.com/metrik/metrik/internal/shared"
)

func setPostingEnv(t *testing.T) {
	t.Setenv("ACCOUNT_SALES", "acc-sales")
	t.Setenv("ACCOUNT_PURCHASE", "acc-purchase")
	t.Setenv("ACCOUNT_OUTPUT_TAX", "acc-out")
	t.Setenv("ACCOUNT_INPUT_TAX", "acc-in")
}

func TestLoadConfigDefaults(t *testing.T) {
	setPostingEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.LedgerCacheTTL)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.False(t, cfg.IsProduction())

	accounts := cfg.PostingAccounts()
	require.Equal(t, "acc-sales", accounts.Sales)
	require.Equal(t, "acc-in", accounts.InputTax)
	require.Empty(t, accounts.JobWork)
}

func TestLoadConfigRequiresPostingAccounts(t *testing.T) {
	setPostingEnv(t)
	require.NoError(t, os.Unsetenv("ACCOUNT_SALES"))
	_, err := LoadConfig()
	require.Error(t, err)

	setPostingEnv(t)
	t.Setenv("ACCOUNT_OUTPUT_TAX", " ")
	_, err = LoadConfig()
	require.Error(t, err)

	setPostingEnv(t)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "production"}, &buf).Info("hello", slog.String("k", "v"))
	require.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Debug("dbg")
	require.Contains(t, buf.String(), "msg=dbg")
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func newSessionStore(t *testing.T) *shared.SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := shared.NewSessionStore(client, "test:session", time.Hour)
	require.NoError(t, store.Save(context.Background(), "tok-1", shared.Session{UserID: "u1", BusinessID: "biz", Role: "owner"}))
	return store
}

func TestSessionMiddleware(t *testing.T) {
	store := newSessionStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen *shared.Session
	h := SessionMiddleware(logger, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "biz", seen.BusinessID)

	seen = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer unknown")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 100, AppRequestTimeout: time.Second}
	router := NewRouter(RouterParams{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Sessions: newSessionStore(t),
		Metrics:  observability.NewMetrics(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "metrik_http_requests_total"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitKeyPrefersUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	key, err := rateLimitKey(req)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", key)

	req = req.WithContext(shared.ContextWithSession(req.Context(), &shared.Session{UserID: "u1"}))
	key, err = rateLimitKey(req)
	require.NoError(t, err)
	require.Equal(t, "user:u1", key)

}

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustdir/internal/platform/config"
	"trustdir/pkg/testutil"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.Server{Env: "test", RequestTimeout: 5 * time.Second},
		Cache:  config.CacheConfig{Backend: config.CacheMemory, TTL: time.Minute, MaxEntries: 100},
		Auth: config.AuthConfig{
			JWTSigningKey: "app-test-key",
			JWTIssuer:     "trustdir",
			JWTAudience:   "trustdir-admin",
		},
		Identity: config.IdentityConfig{
			DefaultRegion:  "TR",
			ResolverLimit:  10,
			IntegrityProbe: true,
			Fingerprinting: true,
		},
	}
}

func TestNewInMemory(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	router := a.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/applications",
		map[string]string{"name": "Kule Sapanca", "handle": "@kulesapanca"}))
	testutil.AssertStatus(t, w, http.StatusCreated)
	testutil.AssertJSONContains(t, w, "status", "pending")
	app := testutil.UnmarshalResponse[map[string]any](t, w)

	token, err := a.JWT.GenerateAccessToken("ops-1", "admin", time.Minute)
	require.NoError(t, err)
	approve := testutil.NewRequest(t, http.MethodPost, "/v1/admin/applications/"+(*app)["id"].(string)+"/approve")
	w = testutil.DoRequest(router, testutil.WithBearer(approve, token))
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "go_goroutines")

	assert.Error(t, a.Migrate(context.Background()))
}

func TestNewRejectsRedisCacheWithoutClient(t *testing.T) {
	cfg := memoryConfig()
	cfg.Cache.Backend = config.CacheRedis

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestRouterRateLimitsWrites(t *testing.T) {
	cfg := memoryConfig()
	cfg.Limits = config.RateLimitConfig{Enabled: true, ReadRequests: 100, WriteRequests: 1, Window: time.Minute}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()
	router := a.Router()

	submit := func() *httptest.ResponseRecorder {
		return testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/applications",
			map[string]string{"name": "Kule Sapanca", "handle": "@kulesapanca"}))
	}

	testutil.AssertStatus(t, submit(), http.StatusCreated)
	w := submit()
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	testutil.AssertStatusAndError(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/classify?q=kulesapanca", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
}

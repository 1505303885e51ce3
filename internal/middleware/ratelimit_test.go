package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealforge/mealforge-api/internal/obs"
	"github.com/mealforge/mealforge-api/internal/quota"
)

// memStore is an in-memory quota.Store for middleware tests.
type memStore struct {
	mu      sync.Mutex
	tiers   map[string]string
	counts  map[string]int
	dates   map[string]time.Time
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{
		tiers:  make(map[string]string),
		counts: make(map[string]int),
		dates:  make(map[string]time.Time),
	}
}

func (s *memStore) GetTierAndCounters(_ context.Context, identity string) (quota.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return quota.Counters{}, errors.New("store down")
	}
	tier, ok := s.tiers[identity]
	if !ok {
		return quota.Counters{}, quota.ErrNotFound
	}
	return quota.Counters{Tier: tier, RequestsToday: s.counts[identity], LastRequestDate: s.dates[identity]}, nil
}

func (s *memStore) SetCounters(_ context.Context, identity string, requestsToday int, lastRequestDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[identity] = requestsToday
	s.dates[identity] = lastRequestDate
	return nil
}

func (s *memStore) IncrementDaily(_ context.Context, identity string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return 0, errors.New("store down")
	}
	if !s.dates[identity].Equal(day) {
		s.counts[identity] = 0
		s.dates[identity] = day
	}
	s.counts[identity]++
	return s.counts[identity], nil
}

func (s *memStore) DecrementDaily(_ context.Context, identity string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dates[identity].Equal(day) && s.counts[identity] > 0 {
		s.counts[identity]--
	}
	return nil
}

func limiterProfiles(t *testing.T) *quota.Profiles {
	t.Helper()

	profiles, err := quota.BuildProfiles(map[string]quota.ProfileSpec{
		"free":   {DailyLimit: 2, WindowLimit: 10, WindowSeconds: 60},
		"active": {DailyLimit: 100, WindowLimit: 20, WindowSeconds: 60, Features: []string{"image_analysis"}},
		"growth": {DailyLimit: 500, WindowLimit: 3, WindowSeconds: 60},
		"thrive": {DailyLimit: quota.Unlimited, WindowLimit: quota.Unlimited},
	})
	require.NoError(t, err)

	return profiles
}

func limiterRouter(t *testing.T, store quota.Store) *gin.Engine {
	t.Helper()

	profiles := limiterProfiles(t)
	resolver := quota.NewResolver(store, profiles, zerolog.Nop())
	gate := quota.NewGate(store, quota.NewMemoryWindow(), zerolog.Nop())

	r := gin.New()
	r.Use(Identity(), SubscriptionTier(resolver), RateLimiter(gate, obs.NewMetrics()))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}

func doGet(r *gin.Engine, identity string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if identity != "" {
		req.Header.Set(IdentityHeader, identity)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowedRequestGetsQuotaHeaders(t *testing.T) {
	r := limiterRouter(t, newMemStore())

	w := doGet(r, "u1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "free", w.Header().Get("X-RateLimit-Tier"))
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, w.Header().Get("X-RateLimit-Exempt"))
}

func TestRateLimiter_DailyDenialBodyAndHeaders(t *testing.T) {
	r := limiterRouter(t, newMemStore())

	// Free tier allows 2 per day here.
	require.Equal(t, http.StatusOK, doGet(r, "u1").Code)
	require.Equal(t, http.StatusOK, doGet(r, "u1").Code)

	w := doGet(r, "u1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Error    string `json:"error"`
		TierInfo struct {
			CurrentTier  string `json:"current_tier"`
			Limit        int    `json:"limit"`
			RequestsUsed int    `json:"requests_used"`
			ResetDate    string `json:"reset_date"`
		} `json:"tier_info"`
		UpgradeOptions *quota.Upgrade `json:"upgrade_options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Daily request limit reached", body.Error)
	assert.Equal(t, "free", body.TierInfo.CurrentTier)
	assert.Equal(t, 2, body.TierInfo.Limit)
	assert.Equal(t, 2, body.TierInfo.RequestsUsed)

	reset, err := time.Parse(time.RFC3339, body.TierInfo.ResetDate)
	require.NoError(t, err)
	assert.True(t, reset.After(time.Now().UTC()))

	require.NotNil(t, body.UpgradeOptions)
	assert.Equal(t, quota.TierActive, body.UpgradeOptions.NextTier)
	assert.NotEmpty(t, body.UpgradeOptions.Benefits)
}

func TestRateLimiter_WindowDenialBody(t *testing.T) {
	store := newMemStore()
	store.tiers["g1"] = "growth" // window cap 3/minute, daily 500
	r := limiterRouter(t, store)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, doGet(r, "g1").Code)
	}

	w := doGet(r, "g1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body struct {
		Error    string `json:"error"`
		TierInfo struct {
			Limit             int `json:"limit"`
			CurrentCount      int `json:"current_count"`
			WindowSizeSeconds int `json:"window_size_seconds"`
		} `json:"tier_info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "Too many requests, slow down", body.Error)
	assert.Equal(t, 3, body.TierInfo.Limit)
	assert.Equal(t, 4, body.TierInfo.CurrentCount)
	assert.Equal(t, 60, body.TierInfo.WindowSizeSeconds)

	// A window denial must not burn daily quota.
	assert.Equal(t, 3, store.counts["g1"])
}

func TestRateLimiter_IdentitiesAreIsolated(t *testing.T) {
	r := limiterRouter(t, newMemStore())

	require.Equal(t, http.StatusOK, doGet(r, "alice").Code)
	require.Equal(t, http.StatusOK, doGet(r, "alice").Code)
	require.Equal(t, http.StatusTooManyRequests, doGet(r, "alice").Code)

	// A different identity still has its full quota.
	assert.Equal(t, http.StatusOK, doGet(r, "bob").Code)
}

func TestRateLimiter_TopTierIsExempt(t *testing.T) {
	store := newMemStore()
	store.tiers["vip"] = "thrive"
	r := limiterRouter(t, store)

	for i := 0; i < 20; i++ {
		w := doGet(r, "vip")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "true", w.Header().Get("X-RateLimit-Exempt"))
		assert.Equal(t, "thrive", w.Header().Get("X-RateLimit-Tier"))
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}

	assert.Zero(t, store.counts["vip"], "exempt traffic must not touch counters")
}

func TestRateLimiter_FailsOpenWhenStoreIsDown(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	r := limiterRouter(t, store)

	w := doGet(r, "u1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiter_PassesThroughWithoutTierResolution(t *testing.T) {
	store := newMemStore()
	gate := quota.NewGate(store, quota.NewMemoryWindow(), zerolog.Nop())

	r := gin.New()
	r.Use(RateLimiter(gate, obs.NewMetrics()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Tier"))
}

func TestRequireFeature_BlocksTiersWithoutFlag(t *testing.T) {
	store := newMemStore()
	store.tiers["paid"] = "active"
	profiles := limiterProfiles(t)
	resolver := quota.NewResolver(store, profiles, zerolog.Nop())

	r := gin.New()
	r.Use(Identity(), SubscriptionTier(resolver))
	r.POST("/analyze", RequireFeature("image_analysis"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Free tier lacks the flag.
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	req.Header.Set(IdentityHeader, "free-user")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)

	var body struct {
		Feature        string         `json:"feature"`
		CurrentTier    string         `json:"current_tier"`
		UpgradeOptions *quota.Upgrade `json:"upgrade_options"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "image_analysis", body.Feature)
	assert.Equal(t, "free", body.CurrentTier)
	require.NotNil(t, body.UpgradeOptions)
	assert.Equal(t, quota.TierActive, body.UpgradeOptions.NextTier)

	// Active tier carries it.
	req = httptest.NewRequest(http.MethodPost, "/analyze", nil)
	req.Header.Set(IdentityHeader, "paid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

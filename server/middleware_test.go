package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging_SetsRequestID(t *testing.T) {
	parts := newTestServer(Config{})

	rec := do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time-Ms"))
}

func TestLogging_PanicBecomes500(t *testing.T) {
	parts := newTestServer(Config{})
	parts.server.probes["boom"] = func() bool { panic("probe exploded") }

	rec := do(parts.server, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	parts := newTestServer(Config{RequestsPerMinute: 3})
	now, advance := fixedClock(time.Now())
	parts.server.now = now

	for range 3 {
		rec := do(parts.server, http.MethodGet, "/", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	var body rateLimitBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.Equal(t, 3, body.Limit)
	assert.Equal(t, 0, body.Remaining)
	assert.Positive(t, body.RetryAfter)

	// The window slides: a minute later requests pass again.
	advance(61 * time.Second)
	rec = do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_RemainingCountsDown(t *testing.T) {
	parts := newTestServer(Config{RequestsPerMinute: 5})

	rec := do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	rec = do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_PerEndpointOverride(t *testing.T) {
	parts := newTestServer(Config{
		RequestsPerMinute: 100,
		EndpointLimits:    map[string]int{"/api/v1/sync/status": 1},
	})

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other endpoints still use the global limit.
	rec = do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_IdentityIncludesUser(t *testing.T) {
	parts := newTestServer(Config{
		RequestsPerMinute: 1,
		Auth:              AuthConfig{APIKeys: map[string]string{"key-a": "alice", "key-b": "bob"}},
	})

	// Same IP, different users: each gets their own window.
	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, map[string]string{"X-API-Key": "key-a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, map[string]string{"X-API-Key": "key-b"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, map[string]string{"X-API-Key": "key-a"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_ZeroLimitRejectsEverything(t *testing.T) {
	srv := NewServer(Config{RequestsPerMinute: 0}, newFakeStore(), &fakeResearcher{}, &fakeGen{},
		WithLogger(testServerLogger()))

	rec := do(srv, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body rateLimitBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.Equal(t, 0, body.Limit)
}

func TestRateLimit_ZeroEndpointOverrideRejects(t *testing.T) {
	parts := newTestServer(Config{EndpointLimits: map[string]int{"/api/v1/sync/status": 0}})

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_NegativeLimitDisablesLimiting(t *testing.T) {
	parts := newTestServer(Config{RequestsPerMinute: -1})

	rec := do(parts.server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestLimiter_SweepDropsIdleClients(t *testing.T) {
	now, advance := fixedClock(time.Now())
	l := newLimiter(now)

	for i := range maxTrackedClients + 1 {
		l.check(string(rune(i)), 10)
	}
	require.Greater(t, l.tracked(), maxTrackedClients)

	advance(2 * rateWindow)
	l.check("fresh", 10)
	assert.LessOrEqual(t, l.tracked(), 2)
}

func TestAuth_PublicPathsSkipAuth(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{JWTSecret: "secret"}})

	for _, path := range []string{"/", "/api/v1/health", "/metrics"} {
		rec := do(parts.server, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuth_MissingCredentials(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{JWTSecret: "secret"}})

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body.Error)
	assert.Equal(t, "/api/v1/sync/status", body.Path)
}

func TestAuth_ValidJWT(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{JWTSecret: "secret"}})

	token, err := parts.server.IssueToken("alice", time.Hour, map[string]any{"role": "admin"})
	require.NoError(t, err)

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_ExpiredJWT(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{JWTSecret: "secret"}})
	now, advance := fixedClock(time.Now())
	parts.server.now = now

	token, err := parts.server.IssueToken("alice", time.Minute, nil)
	require.NoError(t, err)

	advance(2 * time.Minute)
	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_TamperedJWT(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{JWTSecret: "secret"}})

	other := newAuthenticator(AuthConfig{JWTSecret: "other-secret"}, time.Now)
	token, err := other.IssueToken("mallory", time.Hour, nil)
	require.NoError(t, err)

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil,
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_APIKeyFallback(t *testing.T) {
	parts := newTestServer(Config{Auth: AuthConfig{APIKeys: map[string]string{"k1": "svc"}}})

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil,
		map[string]string{"X-API-Key": "k1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(parts.server, http.MethodGet, "/api/v1/sync/status", nil,
		map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_DisabledPassesAnonymous(t *testing.T) {
	parts := newTestServer(Config{})

	rec := do(parts.server, http.MethodGet, "/api/v1/sync/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPublicPath(t *testing.T) {
	assert.True(t, publicPath("/"))
	assert.True(t, publicPath("/docs"))
	assert.True(t, publicPath("/api/v1/health"))
	assert.True(t, publicPath("/metrics"))
	assert.False(t, publicPath("/api/v1/standards/list"))
	assert.False(t, publicPath("/api"))
}

package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedHandler(srv *Server, max int, window time.Duration) http.Handler {
	return srv.RateLimit("test", max, window)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimit_HeadersOnAllowedRequests(t *testing.T) {
	srv := newTestServer(t, testConfig())
	handler := rateLimitedHandler(srv, 3, time.Minute)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		req.RemoteAddr = "203.0.113.9:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	srv := newTestServer(t, testConfig())
	handler := rateLimitedHandler(srv, 2, time.Minute)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		req.RemoteAddr = "203.0.113.9:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.RemoteAddr = "203.0.113.9:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)
	assert.EqualValues(t, retryAfter, resp.Error.Details["retry_after_seconds"])
}

func TestRateLimit_CallersMeteredIndependently(t *testing.T) {
	srv := newTestServer(t, testConfig())
	handler := rateLimitedHandler(srv, 1, time.Minute)

	first := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	first.RemoteAddr = "203.0.113.9:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	second.RemoteAddr = "198.51.100.7:1000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusOK, rec.Code, "a different caller has its own window")
}

func TestRateLimit_ForwardedForIdentifiesCaller(t *testing.T) {
	srv := newTestServer(t, testConfig())
	handler := rateLimitedHandler(srv, 1, time.Minute)

	for i, wantStatus := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		req.RemoteAddr = "10.0.0.1:1000" // proxy address varies, client does not
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, wantStatus, rec.Code, "request %d", i)
	}
}

func TestRateLimit_ClassesMeteredIndependently(t *testing.T) {
	srv := newTestServer(t, testConfig())
	public := srv.RateLimit("public", 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	billing := srv.RateLimit("billing", 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.RemoteAddr = "203.0.113.9:1000"
	rec := httptest.NewRecorder()
	public.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/billing/checkout", nil)
	req.RemoteAddr = "203.0.113.9:1000"
	rec = httptest.NewRecorder()
	billing.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "billing class has a separate counter")
}

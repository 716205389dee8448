package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehax/internal/gate"
	"tradehax/internal/types"
)

func TestRequireAdminAccess_ValidKey(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var seenAccess types.AdminAccessResult
	handler := srv.RequireAdminAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccess, _ = types.GetAdminAccess(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/subscription", nil)
	req.Header.Set(gate.HeaderAdminKey, "test-admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(types.AdminModeKey), rec.Header().Get(HeaderAdminMode))
	assert.True(t, seenAccess.Allowed)
	assert.Equal(t, types.AdminModeKey, seenAccess.Mode)
}

func TestRequireAdminAccess_Denied(t *testing.T) {
	srv := newTestServer(t, testConfig())

	handler := srv.RequireAdminAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on denial")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/subscription", nil)
	req.Header.Set(gate.HeaderAdminKey, "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderAdminMode))

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "admin_unauthorized", resp.Error.Code)
}

func TestRequireAdminAccess_DevFallbackMode(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AdminAPIKey = ""
	srv := newTestServer(t, cfg)

	handler := srv.RequireAdminAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/subscription", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(types.AdminModeDevFallback), rec.Header().Get(HeaderAdminMode))
}

func TestWithIdentity_QueryParameter(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var seenID string
	handler := srv.WithIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = types.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=Trader-42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "trader-42", seenID)
}

func TestWithIdentity_AnonymousFallback(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var seenID string
	handler := srv.WithIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = types.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	req.Header.Set("User-Agent", "hax-terminal/2.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, strings.HasPrefix(seenID, "anon_"), "got %q", seenID)
}

func TestWithIdentity_AfterAdminGatePermitsOverride(t *testing.T) {
	cfg := testConfig()
	srv := newTestServer(t, cfg)
	// Production-grade policy: override only via admin access.
	srv.Identity = gate.NewResolver(gate.TrustPolicy{IsProduction: true}, nil, testLogger())

	var seenID string
	handler := srv.RequireAdminAccess(srv.WithIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = types.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/usage?user_id=target-user", nil)
	req.Header.Set(gate.HeaderAdminKey, "test-admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "target-user", seenID, "admin access permits acting on behalf of a user")
}

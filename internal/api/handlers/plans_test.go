package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehax/internal/billing"
	"tradehax/internal/core"
)

func plansRouter() *chi.Mux {
	r := chi.NewRouter()
	NewPlansHandler(billing.NewStaticCatalog()).RegisterRoutes(r)
	return r
}

func TestPlansList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec := httptest.NewRecorder()
	plansRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PlanListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 4)
	assert.Equal(t, "free", string(resp.Plans[0].ID))
	assert.Equal(t, "elite", string(resp.Plans[3].ID))
	assert.Equal(t, 15, resp.Plans[0].Limits.AIChatDaily)
}

func TestPlansGetByTier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plans/pro", nil)
	rec := httptest.NewRecorder()
	plansRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"pro"`)
	assert.Contains(t, rec.Body.String(), `"overclock_ai":true`)
}

func TestPlansGetByTier_CaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plans/PRO", nil)
	rec := httptest.NewRecorder()
	plansRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlansGetByTier_Unknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plans/platinum", nil)
	rec := httptest.NewRecorder()
	plansRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found_plan", resp.Error.Code)
	assert.Equal(t, "platinum", resp.Error.Details["tier"])
}

// Package handlers contains the HTTP handler implementations for the
// TradeHax governance API. Each handler declares the narrow service
// interface it depends on and receives the implementation via its
// constructor, which keeps handlers decoupled from concrete domain types
// and straightforward to test.
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/billing"
	"tradehax/internal/core"
	"tradehax/internal/types"
)

// PlansHandler serves the static plan catalog.
type PlansHandler struct {
	catalog billing.Catalog
}

// NewPlansHandler creates a PlansHandler over the given catalog.
func NewPlansHandler(catalog billing.Catalog) *PlansHandler {
	return &PlansHandler{catalog: catalog}
}

// RegisterRoutes mounts the plan catalog endpoints.
func (h *PlansHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.List)
	r.Get("/plans/{tier}", h.GetByTier)
}

// PlanListResponse is the response for GET /v1/plans.
type PlanListResponse struct {
	Plans []types.PlanDefinition `json:"plans"`
}

// List handles GET /v1/plans. Plans are returned in ascending order of
// capability.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans := make([]types.PlanDefinition, 0, len(types.AllTiers))
	for _, tier := range types.AllTiers {
		plans = append(plans, h.catalog.GetPlan(tier))
	}
	core.JSON(w, r, http.StatusOK, PlanListResponse{Plans: plans})
}

// GetByTier handles GET /v1/plans/{tier}. Unknown tiers are a 404, not the
// catalog's free-plan fallback: the fallback exists to fail closed on
// internal lookups, while a direct request for a nonexistent plan is a
// client error.
func (h *PlansHandler) GetByTier(w http.ResponseWriter, r *http.Request) {
	raw := strings.ToLower(chi.URLParam(r, "tier"))
	if !types.IsSubscriptionTier(raw) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundPlan,
			"no such plan",
			nil,
			map[string]any{"tier": raw},
		))
		return
	}
	core.JSON(w, r, http.StatusOK, h.catalog.GetPlan(types.Tier(raw)))
}

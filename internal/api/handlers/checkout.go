package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/billing"
	"tradehax/internal/core"
	"tradehax/internal/types"
)

// CheckoutService resolves a purchase request to a checkout destination.
// Satisfied by *billing.CheckoutResolver.
type CheckoutService interface {
	Resolve(ctx context.Context, userID string, provider types.Provider, tier types.Tier, cycle types.BillingCycle) (billing.CheckoutResult, error)
}

// CheckoutHandler serves POST /v1/billing/checkout.
type CheckoutHandler struct {
	checkout CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler. A nil logger defaults to
// slog.Default.
func NewCheckoutHandler(checkout CheckoutService, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// RegisterRoutes mounts the checkout endpoint.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout", h.Create)
}

// CheckoutRequest is the request body for POST /v1/billing/checkout.
// Provider defaults to stripe and billing_cycle to monthly.
type CheckoutRequest struct {
	Tier         string `json:"tier"`
	Provider     string `json:"provider"`
	BillingCycle string `json:"billing_cycle"`
}

// Create handles POST /v1/billing/checkout. Tier validation, the free-tier
// rejection, and the URL fallback chain live in the resolver.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil))
		return
	}

	provider := types.ProviderStripe
	if req.Provider != "" {
		provider = types.Provider(req.Provider)
	}

	result, err := h.checkout.Resolve(r.Context(), userID, provider, types.Tier(req.Tier), types.BillingCycle(req.BillingCycle))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout destination resolved",
		slog.String("user_id", userID),
		slog.String("tier", req.Tier),
		slog.String("provider", string(result.Provider)),
		slog.Bool("simulated", result.Simulated),
	)
	core.JSON(w, r, http.StatusOK, result)
}

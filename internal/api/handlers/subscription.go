package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/core"
	"tradehax/internal/types"
)

// SubscriptionManager is the subset of the subscription store the handler
// needs. Satisfied by *billing.SubscriptionStore.
type SubscriptionManager interface {
	Get(userID string) types.SubscriptionRecord
	SetTier(userID string, tier types.Tier, provider types.Provider, metadata map[string]string) (types.SubscriptionRecord, error)
	CancelAtPeriodEnd(userID string) types.SubscriptionRecord
	Reactivate(userID string) types.SubscriptionRecord
}

// SubscriptionHandler serves the caller-facing subscription endpoints plus
// the admin tier override.
type SubscriptionHandler struct {
	subs   SubscriptionManager
	logger *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler. A nil logger
// defaults to slog.Default.
func NewSubscriptionHandler(subs SubscriptionManager, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{subs: subs, logger: logger}
}

// RegisterRoutes mounts the identity-resolved subscription endpoints. The
// parent router must apply the identity middleware.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscription", h.Get)
	r.Post("/subscription/cancel", h.Cancel)
	r.Post("/subscription/reactivate", h.Reactivate)
}

// RegisterAdminRoutes mounts the admin tier override. The parent router must
// apply the admin gate before the identity middleware so that admin access
// unlocks the direct identity override.
func (h *SubscriptionHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/subscription", h.AdminSetTier)
}

// Get handles GET /v1/subscription. Users without a stored record receive a
// synthesized free/active default; the read never creates state.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil))
		return
	}
	core.JSON(w, r, http.StatusOK, h.subs.Get(userID))
}

// Cancel handles POST /v1/subscription/cancel. The tier is unchanged; access
// continues until the end of the current period.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil))
		return
	}

	rec := h.subs.CancelAtPeriodEnd(userID)
	h.logger.InfoContext(r.Context(), "subscription marked for cancellation",
		slog.String("user_id", userID),
		slog.String("tier", string(rec.Tier)),
	)
	core.JSON(w, r, http.StatusOK, rec)
}

// Reactivate handles POST /v1/subscription/reactivate.
func (h *SubscriptionHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil))
		return
	}

	rec := h.subs.Reactivate(userID)
	h.logger.InfoContext(r.Context(), "subscription reactivated",
		slog.String("user_id", userID),
		slog.String("tier", string(rec.Tier)),
	)
	core.JSON(w, r, http.StatusOK, rec)
}

// AdminSetTierRequest is the request body for POST /v1/admin/subscription.
// UserID is optional; when empty the identity resolved for the request is
// used, which lets admins target a user via the user_id query override.
type AdminSetTierRequest struct {
	UserID   string            `json:"user_id"`
	Tier     string            `json:"tier"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata"`
}

// AdminSetTier handles POST /v1/admin/subscription. It overwrites the target
// user's tier unconditionally, reviving canceled records.
func (h *SubscriptionHandler) AdminSetTier(w http.ResponseWriter, r *http.Request) {
	var req AdminSetTierRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if !types.IsSubscriptionTier(req.Tier) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownTier,
			"unknown subscription tier",
			nil,
			map[string]any{"tier": req.Tier},
		))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID, _ = types.GetUserID(r.Context())
	}
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user_id is required", nil))
		return
	}

	provider := types.ProviderNone
	if req.Provider != "" {
		provider = types.Provider(req.Provider)
	}

	rec, err := h.subs.SetTier(userID, types.Tier(req.Tier), provider, req.Metadata)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	access, _ := types.GetAdminAccess(r.Context())
	h.logger.InfoContext(r.Context(), "admin tier override applied",
		slog.String("user_id", userID),
		slog.String("tier", req.Tier),
		slog.String("admin_mode", string(access.Mode)),
	)
	core.JSON(w, r, http.StatusOK, rec)
}

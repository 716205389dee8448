package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/billing"
	"tradehax/internal/core"
	"tradehax/internal/types"
)

// AllowanceEngine is the subset of the usage ledger the handler needs.
// Satisfied by *billing.UsageLedger.
type AllowanceEngine interface {
	CanConsume(userID string, feature types.Feature, requestedUnits int) types.AllowanceResult
	TryConsume(userID string, feature types.Feature, units int, source string, metadata map[string]string) types.AllowanceResult
	Summary(userID string) []billing.FeatureUsage
}

// UsageHandler serves the usage summary and allowance endpoints. All routes
// are identity-resolved by the parent router.
type UsageHandler struct {
	ledger AllowanceEngine
}

// NewUsageHandler creates a UsageHandler over the given ledger.
func NewUsageHandler(ledger AllowanceEngine) *UsageHandler {
	return &UsageHandler{ledger: ledger}
}

// RegisterRoutes mounts the usage and allowance endpoints.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage", h.Summary)
	r.Post("/allowance/check", h.Check)
	r.Post("/usage/consume", h.Consume)
}

// UsageSummaryResponse is the response for GET /v1/usage.
type UsageSummaryResponse struct {
	UserID string                 `json:"user_id"`
	Usage  []billing.FeatureUsage `json:"usage"`
}

// AllowanceRequest is the request body for POST /v1/allowance/check and
// POST /v1/usage/consume. Units defaults to 1 when omitted.
type AllowanceRequest struct {
	Feature  string            `json:"feature"`
	Units    int               `json:"units"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// Summary handles GET /v1/usage: today's consumption against the caller's
// current tier limits, one row per metered feature.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := types.GetUserID(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil))
		return
	}
	core.JSON(w, r, http.StatusOK, UsageSummaryResponse{
		UserID: userID,
		Usage:  h.ledger.Summary(userID),
	})
}

// Check handles POST /v1/allowance/check. It reports the verdict without
// recording consumption and always returns 200; Allowed carries the answer.
func (h *UsageHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, req, err := h.decode(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, h.ledger.CanConsume(userID, types.Feature(req.Feature), req.Units))
}

// Consume handles POST /v1/usage/consume. Check and append run atomically;
// a denial returns 429 with the allowance verdict as the body so callers can
// show what is left without a second request.
func (h *UsageHandler) Consume(w http.ResponseWriter, r *http.Request) {
	userID, req, err := h.decode(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	res := h.ledger.TryConsume(userID, types.Feature(req.Feature), req.Units, source, req.Metadata)
	if !res.Allowed {
		core.JSON(w, r, http.StatusTooManyRequests, res)
		return
	}
	core.JSON(w, r, http.StatusOK, res)
}

// decode parses the shared allowance request body and resolves the caller.
func (h *UsageHandler) decode(w http.ResponseWriter, r *http.Request) (string, AllowanceRequest, error) {
	var req AllowanceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		return "", req, err
	}

	if !types.IsMeteredFeature(req.Feature) {
		return "", req, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownFeature,
			"unknown metered feature",
			nil,
			map[string]any{"feature": req.Feature},
		)
	}

	userID, ok := types.GetUserID(r.Context())
	if !ok {
		return "", req, types.NewAppError(types.ErrCodeInternalUnexpected, "request identity missing", nil)
	}
	return userID, req, nil
}

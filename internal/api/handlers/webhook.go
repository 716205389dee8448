package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradehax/internal/billing"
	"tradehax/internal/core"
	"tradehax/internal/external"
	"tradehax/internal/types"
)

// maxWebhookBodySize caps billing webhook payloads at 64 KB. Provider events
// are small; the limit protects against abuse on an unauthenticated route.
const maxWebhookBodySize = 64 * 1024

// EventReconciler applies a verified webhook payload to subscription state.
// Satisfied by *billing.Reconciler.
type EventReconciler interface {
	HandleEvent(ctx context.Context, payload []byte) (billing.Outcome, error)
}

// BillingWebhookHandler serves POST /webhooks/billing. The route is not
// behind the admin gate or identity resolution; the verifier is the only
// authentication.
type BillingWebhookHandler struct {
	verifier   external.WebhookVerifier
	reconciler EventReconciler
	logger     *slog.Logger
}

// NewBillingWebhookHandler creates a BillingWebhookHandler. A nil logger
// defaults to slog.Default.
func NewBillingWebhookHandler(verifier external.WebhookVerifier, reconciler EventReconciler, logger *slog.Logger) *BillingWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingWebhookHandler{verifier: verifier, reconciler: reconciler, logger: logger}
}

// RegisterRoutes mounts the billing webhook endpoint under the webhook
// router.
func (h *BillingWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing", h.Handle)
}

// Handle reads the payload, verifies the caller, and hands the event to the
// reconciler. The reconciler's outcome is the response body.
func (h *BillingWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			slog.String("error", err.Error()),
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeWebhookMalformed, "failed to read request body", err))
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get(core.HeaderWebhookSecret), r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.WarnContext(r.Context(), "webhook verification failed",
			slog.String("error", err.Error()),
		)
		core.Error(w, r, err)
		return
	}

	outcome, err := h.reconciler.HandleEvent(r.Context(), payload)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, outcome)
}

package billing

import (
	"context"
	"encoding/json"
	"log/slog"

	"tradehax/internal/types"
)

// Billing provider event types the reconciler understands. Anything else is
// acknowledged as a no-op for forward compatibility.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Outcome reports what the reconciler did with an event.
type Outcome struct {
	OK        bool   `json:"ok"`
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
}

// Reconciler translates billing-provider webhook events into subscription
// store mutations. It runs out of band from the request path; tier changes
// take effect on the caller's next request because allowance checks always
// read the current store state.
//
// Webhook delivery is assumed idempotent by the provider; the reconciler
// performs no event-id deduplication. SetTier and status patches are
// idempotent by construction, so replays are harmless for the current event
// set.
type Reconciler struct {
	subs   *SubscriptionStore
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over the given subscription store.
// A nil logger defaults to slog.Default.
func NewReconciler(subs *SubscriptionStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{subs: subs, logger: logger}
}

// webhookEnvelope is the minimal representation of a provider event:
// {type, data:{object}}. We avoid importing provider SDK event types to keep
// the reconciler decoupled and testing straightforward.
type webhookEnvelope struct {
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Data webhookData `json:"data"`
}

type webhookData struct {
	Object json.RawMessage `json:"object"`
}

// webhookObject carries the fields extracted from any event's data object.
type webhookObject struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Status            string            `json:"status"`
	Metadata          map[string]string `json:"metadata"`
}

// HandleEvent parses and applies one webhook payload. The shared-secret
// check happens in the HTTP handler before this is called.
//
// Malformed JSON returns a webhook_malformed error. A payload with no
// resolvable userID is logged and skipped, but still acknowledged as
// received -- provider retries cannot fix a missing identifier.
func (rc *Reconciler) HandleEvent(ctx context.Context, payload []byte) (Outcome, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Outcome{}, types.NewAppError(types.ErrCodeWebhookMalformed, "invalid webhook event JSON", err)
	}

	rc.logger.InfoContext(ctx, "processing billing webhook event",
		slog.String("event_id", env.ID),
		slog.String("event_type", env.Type),
	)

	switch env.Type {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated:
		rc.applySubscriptionChange(ctx, &env)
	case EventSubscriptionDeleted:
		rc.applySubscriptionDeleted(ctx, &env)
	default:
		rc.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			slog.String("event_type", env.Type),
		)
	}

	return Outcome{OK: true, Received: true, EventType: env.Type}, nil
}

// applySubscriptionChange handles checkout completion and subscription
// create/update events: apply the requested tier when it is a recognized
// value, then patch the status.
func (rc *Reconciler) applySubscriptionChange(ctx context.Context, env *webhookEnvelope) {
	obj, userID := rc.extract(ctx, env)
	if userID == "" {
		return
	}

	if tier, ok := obj.Metadata["tier"]; ok && types.IsSubscriptionTier(tier) {
		provider := types.ProviderStripe
		if p, ok := obj.Metadata["provider"]; ok && p != "" {
			provider = types.Provider(p)
		}
		if _, err := rc.subs.SetTier(userID, types.Tier(tier), provider, obj.Metadata); err != nil {
			rc.logger.ErrorContext(ctx, "webhook tier change rejected",
				slog.String("user_id", userID),
				slog.String("tier", tier),
				slog.String("error", err.Error()),
			)
		}
	}

	status := mapProviderStatus(obj.Status)
	rc.subs.UpdateRecord(userID, types.SubscriptionPatch{Status: &status})
}

// applySubscriptionDeleted cancels the subscription and marks it canceled.
// The tier is left untouched; downgrade is a separate provider event.
func (rc *Reconciler) applySubscriptionDeleted(ctx context.Context, env *webhookEnvelope) {
	_, userID := rc.extract(ctx, env)
	if userID == "" {
		return
	}

	rc.subs.CancelAtPeriodEnd(userID)
	canceled := types.SubStatusCanceled
	rc.subs.UpdateRecord(userID, types.SubscriptionPatch{Status: &canceled})
}

// extract parses the event's data object and resolves the user identifier
// from metadata.user_id or the client reference field. A missing identifier
// is logged and yields empty -- the mutation is silently skipped.
func (rc *Reconciler) extract(ctx context.Context, env *webhookEnvelope) (webhookObject, string) {
	var obj webhookObject
	if len(env.Data.Object) > 0 {
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			rc.logger.WarnContext(ctx, "webhook data object unreadable",
				slog.String("event_id", env.ID),
				slog.String("error", err.Error()),
			)
			return obj, ""
		}
	}

	userID := obj.Metadata["user_id"]
	if userID == "" {
		userID = obj.ClientReferenceID
	}
	if userID == "" {
		rc.logger.WarnContext(ctx, "webhook event missing user_id, skipping mutation",
			slog.String("event_id", env.ID),
			slog.String("event_type", env.Type),
		)
	}
	return obj, userID
}

// mapProviderStatus maps a provider status string onto the subscription
// lifecycle: canceled and past_due pass through, anything else is active.
func mapProviderStatus(status string) types.SubscriptionStatus {
	switch status {
	case string(types.SubStatusCanceled):
		return types.SubStatusCanceled
	case string(types.SubStatusPastDue):
		return types.SubStatusPastDue
	default:
		return types.SubStatusActive
	}
}

package external

import (
	"crypto/subtle"

	"github.com/stripe/stripe-go/v82/webhook"

	"tradehax/internal/types"
)

// WebhookVerifier authenticates an inbound billing webhook delivery before
// the payload is handed to the reconciler.
type WebhookVerifier interface {
	Verify(payload []byte, providedSecret, signatureHeader string) error
}

// SharedSecretVerifier validates the shared-secret header carried on webhook
// deliveries. Comparison is constant-time regardless of where a mismatch
// occurs. An unset secret means "always valid" outside production, to ease
// local testing; in production an unset secret rejects every delivery.
type SharedSecretVerifier struct {
	Secret       types.SecretString
	IsProduction bool
}

// Verify checks the provided secret against the configured one. The
// signature header is ignored by this verifier.
func (v *SharedSecretVerifier) Verify(_ []byte, providedSecret, _ string) error {
	if !v.Secret.IsSet() {
		if v.IsProduction {
			return types.NewAppError(types.ErrCodeWebhookUnauthorized, "webhook secret is not configured", nil)
		}
		return nil
	}

	expected := []byte(v.Secret.Unmask())
	provided := []byte(providedSecret)
	if len(provided) != len(expected) || subtle.ConstantTimeCompare(provided, expected) != 1 {
		return types.NewAppError(types.ErrCodeWebhookUnauthorized, "invalid webhook secret", nil)
	}
	return nil
}

// StripeSignatureVerifier validates Stripe's Stripe-Signature header, which
// carries an HMAC-SHA256 signature with timestamp tolerance. Used instead of
// the shared-secret scheme when the deployment registers a real Stripe
// webhook endpoint.
type StripeSignatureVerifier struct {
	SigningSecret types.SecretString
}

// Verify checks the HMAC signature over the raw payload. The shared-secret
// argument is ignored by this verifier.
func (v *StripeSignatureVerifier) Verify(payload []byte, _, signatureHeader string) error {
	if err := webhook.ValidatePayload(payload, signatureHeader, v.SigningSecret.Unmask()); err != nil {
		return types.NewAppError(types.ErrCodeWebhookUnauthorized, "invalid webhook signature", err)
	}
	return nil
}

var (
	_ WebhookVerifier = (*SharedSecretVerifier)(nil)
	_ WebhookVerifier = (*StripeSignatureVerifier)(nil)
)

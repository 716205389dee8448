package billing

import (
	"context"
	"fmt"
	"log/slog"

	"tradehax/internal/types"
)

// SessionCreator creates a hosted checkout session with an external billing
// provider and returns its URL. Implemented by external.BillingClient.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, userID string, tier types.Tier, cycle types.BillingCycle) (string, error)
}

// CheckoutConfig holds the static checkout URL table and runtime flags.
type CheckoutConfig struct {
	// URLs maps checkout keys to hosted payment page URLs. Keys are resolved
	// with progressively looser fallbacks:
	//
	//	provider.tier.cycle -> provider.tier -> provider
	URLs map[string]string

	// AllowSimulated permits returning a synthetic checkout URL when no real
	// provider URL is available. Honored only outside production.
	AllowSimulated bool

	IsProduction bool
}

// CheckoutResult describes where the caller should be sent to pay.
type CheckoutResult struct {
	URL       string             `json:"url"`
	Provider  types.Provider     `json:"provider"`
	Tier      types.Tier         `json:"tier"`
	Cycle     types.BillingCycle `json:"billing_cycle"`
	Simulated bool               `json:"simulated"`
}

// CheckoutResolver resolves a (provider, tier, cycle) request to a checkout
// URL: a live provider session when a session creator is wired, then the
// configured URL table, then a simulated URL outside production.
type CheckoutResolver struct {
	cfg      CheckoutConfig
	sessions SessionCreator // nil when no live provider client is configured
	logger   *slog.Logger
}

// NewCheckoutResolver creates a CheckoutResolver. sessions may be nil.
func NewCheckoutResolver(cfg CheckoutConfig, sessions SessionCreator, logger *slog.Logger) *CheckoutResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutResolver{cfg: cfg, sessions: sessions, logger: logger}
}

// Resolve returns the checkout destination for the given combination.
// Free is not purchasable.
func (r *CheckoutResolver) Resolve(ctx context.Context, userID string, provider types.Provider, tier types.Tier, cycle types.BillingCycle) (CheckoutResult, error) {
	if !types.IsSubscriptionTier(string(tier)) {
		return CheckoutResult{}, types.NewAppError(types.ErrCodeValidationUnknownTier, "unknown subscription tier", nil)
	}
	if tier == types.TierFree {
		return CheckoutResult{}, types.NewAppError(types.ErrCodeCheckoutUnavailable, "the free tier does not require checkout", nil)
	}
	if cycle != types.CycleYearly {
		cycle = types.CycleMonthly
	}

	result := CheckoutResult{Provider: provider, Tier: tier, Cycle: cycle}

	// Live provider session first.
	if provider == types.ProviderStripe && r.sessions != nil {
		url, err := r.sessions.CreateCheckoutSession(ctx, userID, tier, cycle)
		if err == nil {
			result.URL = url
			return result, nil
		}
		r.logger.WarnContext(ctx, "live checkout session failed, falling back to configured URLs",
			slog.String("user_id", userID),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()),
		)
	}

	if url := r.lookupURL(provider, tier, cycle); url != "" {
		result.URL = url
		return result, nil
	}

	if r.cfg.AllowSimulated && !r.cfg.IsProduction {
		result.URL = fmt.Sprintf("/simulated-checkout?tier=%s&cycle=%s&provider=%s", tier, cycle, provider)
		result.Simulated = true
		return result, nil
	}

	return CheckoutResult{}, types.NewAppErrorWithDetails(
		types.ErrCodeCheckoutUnavailable,
		"no checkout destination configured for this combination",
		nil,
		map[string]any{"provider": string(provider), "tier": string(tier), "billing_cycle": string(cycle)},
	)
}

// lookupURL walks the fallback key chain over the configured URL table.
func (r *CheckoutResolver) lookupURL(provider types.Provider, tier types.Tier, cycle types.BillingCycle) string {
	keys := []string{
		fmt.Sprintf("%s.%s.%s", provider, tier, cycle),
		fmt.Sprintf("%s.%s", provider, tier),
		string(provider),
	}
	for _, key := range keys {
		if url, ok := r.cfg.URLs[key]; ok && url != "" {
			return url
		}
	}
	return ""
}

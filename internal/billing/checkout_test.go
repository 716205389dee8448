package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehax/internal/types"
)

// stubSessions is a canned SessionCreator.
type stubSessions struct {
	url string
	err error
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, _ string, _ types.Tier, _ types.BillingCycle) (string, error) {
	return s.url, s.err
}

func TestResolve_LiveStripeSession(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{}, &stubSessions{url: "https://checkout.stripe.com/c/sess_123"}, nil)

	result, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/sess_123", result.URL)
	assert.False(t, result.Simulated)
	assert.Equal(t, types.TierPro, result.Tier)
	assert.Equal(t, types.CycleMonthly, result.Cycle)
}

func TestResolve_LiveSessionFailureFallsBackToURLs(t *testing.T) {
	cfg := CheckoutConfig{URLs: map[string]string{"stripe.pro": "https://pay.example.com/pro"}}
	r := NewCheckoutResolver(cfg, &stubSessions{err: errors.New("stripe down")}, nil)

	result, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/pro", result.URL)
	assert.False(t, result.Simulated)
}

func TestResolve_URLFallbackChain(t *testing.T) {
	cfg := CheckoutConfig{URLs: map[string]string{
		"stripe.pro.yearly": "https://pay.example.com/pro-yearly",
		"stripe.pro":        "https://pay.example.com/pro",
		"stripe":            "https://pay.example.com/any",
	}}
	r := NewCheckoutResolver(cfg, nil, nil)

	// Exact key wins.
	result, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.CycleYearly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/pro-yearly", result.URL)

	// No cycle-specific key: falls to provider.tier.
	result, err = r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/pro", result.URL)

	// No tier-specific key either: falls to the bare provider key.
	result, err = r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierBasic, types.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/any", result.URL)
}

func TestResolve_SimulatedOutsideProduction(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{AllowSimulated: true}, nil, nil)

	result, err := r.Resolve(context.Background(), "u1", types.ProviderCoinbase, types.TierElite, types.CycleYearly)
	require.NoError(t, err)
	assert.True(t, result.Simulated)
	assert.Equal(t, "/simulated-checkout?tier=elite&cycle=yearly&provider=coinbase", result.URL)
}

func TestResolve_SimulatedDisabledInProduction(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{AllowSimulated: true, IsProduction: true}, nil, nil)

	_, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.CycleMonthly)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeCheckoutUnavailable, appErr.Code)
	assert.Equal(t, "pro", appErr.Details["tier"])
}

func TestResolve_FreeTierNotPurchasable(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{AllowSimulated: true}, nil, nil)

	_, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierFree, types.CycleMonthly)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeCheckoutUnavailable, appErr.Code)
}

func TestResolve_UnknownTier(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{AllowSimulated: true}, nil, nil)

	_, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.Tier("platinum"), types.CycleMonthly)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationUnknownTier, appErr.Code)
}

func TestResolve_UnknownCycleDefaultsMonthly(t *testing.T) {
	r := NewCheckoutResolver(CheckoutConfig{AllowSimulated: true}, nil, nil)

	result, err := r.Resolve(context.Background(), "u1", types.ProviderStripe, types.TierPro, types.BillingCycle("weekly"))
	require.NoError(t, err)
	assert.Equal(t, types.CycleMonthly, result.Cycle)
}

func TestResolve_NonStripeProviderSkipsLiveSession(t *testing.T) {
	sessions := &stubSessions{url: "https://checkout.stripe.com/c/sess_123"}
	cfg := CheckoutConfig{URLs: map[string]string{"coinbase.pro": "https://commerce.coinbase.com/pro"}}
	r := NewCheckoutResolver(cfg, sessions, nil)

	result, err := r.Resolve(context.Background(), "u1", types.ProviderCoinbase, types.TierPro, types.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://commerce.coinbase.com/pro", result.URL)
}

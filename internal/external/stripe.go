package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"

	"tradehax/internal/types"
)

// stripeAPIBase is the default Stripe API base URL. Overridable in tests via
// StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey types.SecretString
	BaseURL   string // override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger

	// SuccessURL and CancelURL are the redirect targets for hosted checkout.
	SuccessURL string
	CancelURL  string

	// PriceIDs maps "tier.cycle" keys to Stripe Price IDs. Combinations
	// without a configured price cannot open a live session.
	PriceIDs map[string]string
}

// StripeClient creates hosted checkout sessions by calling the Stripe REST
// API directly through BaseClient, so every call inherits circuit breaking,
// retries, and error mapping, and tests can point it at httptest servers.
// It satisfies billing.SessionCreator.
type StripeClient struct {
	base   *BaseClient
	cfg    StripeClientConfig
	logger *slog.Logger
}

// NewStripeClient creates a StripeClient with a default resilience profile.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		DefaultRetryPolicy(),
		"TradeHax/1.0",
	)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient over a pre-configured
// BaseClient. Useful in tests that need to control retry behavior.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = stripeAPIBase
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StripeClient{base: base, cfg: cfg, logger: cfg.Logger}
}

// CreateCheckoutSession opens a Stripe Checkout Session for the given tier
// and cycle and returns its hosted URL. client_reference_id carries the user
// id so webhook reconciliation can correlate the completed session back to a
// subscription record.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, userID string, tier types.Tier, cycle types.BillingCycle) (string, error) {
	priceID := s.priceID(tier, cycle)
	if priceID == "" {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeCheckoutUnavailable,
			"no price configured for this tier and billing cycle",
			nil,
			map[string]any{"tier": string(tier), "billing_cycle": string(cycle)},
		)
	}

	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("client_reference_id", userID)
	params.Set("success_url", s.cfg.SuccessURL)
	params.Set("cancel_url", s.cfg.CancelURL)
	params.Set("metadata[user_id]", userID)
	params.Set("metadata[tier]", string(tier))
	params.Set("metadata[billing_cycle]", string(cycle))
	params.Set("line_items[0][price]", priceID)
	params.Set("line_items[0][quantity]", "1")

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode Stripe checkout session response", err)
	}
	if session.URL == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamBilling, "Stripe checkout session has no URL", nil)
	}

	s.logger.InfoContext(ctx, "created stripe checkout session",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("session_id", session.ID),
	)
	return session.URL, nil
}

// doPost performs an authenticated form-encoded POST to the Stripe API.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	return s.base.Do(req)
}

// priceID resolves the Stripe Price ID for a tier and cycle, falling back to
// the tier-only key.
func (s *StripeClient) priceID(tier types.Tier, cycle types.BillingCycle) string {
	if id, ok := s.cfg.PriceIDs[fmt.Sprintf("%s.%s", tier, cycle)]; ok {
		return id
	}
	return s.cfg.PriceIDs[string(tier)]
}

// stripeErrorResponse is the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleErrorResponse reads a Stripe error body and maps it to an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamBilling,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamBilling,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamBilling,
		fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
		nil,
		map[string]any{"stripe_code": stripeErr.Error.Code, "stripe_type": stripeErr.Error.Type},
	)
}

// wrapStripeError passes through AppErrors from BaseClient (they already
// carry the right upstream code) and wraps anything else.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamBilling, fmt.Sprintf("%s: Stripe request failed: %v", operation, err), err)
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

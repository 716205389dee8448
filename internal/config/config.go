// Package config defines the global configuration structure for the TradeHax
// governance core. Configuration is loaded once at process initialization and
// is immutable thereafter, following 12-Factor principles: values come from
// the OS environment (highest priority) or an optional .env file.
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"tradehax/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tradehax-governance"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server    ServerConfig
	Security  SecurityConfig
	Identity  IdentityConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Database  DatabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicURL is the externally visible base URL of this service, used to
	// derive the trusted origin set (no trailing slash).
	PublicURL       string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// SecurityConfig holds origin validation and admin access settings.
type SecurityConfig struct {
	// TrustedOrigins is the comma-separated allow-list of origins permitted
	// to call browser-facing endpoints, in addition to the service's own
	// public URL.
	TrustedOrigins []string     `envconfig:"TRUSTED_ORIGINS"`
	AdminAPIKey    SecretString `envconfig:"ADMIN_API_KEY"`
	SuperuserCode  SecretString `envconfig:"SUPERUSER_CODE"`
}

// IdentityConfig holds caller identity resolution settings.
type IdentityConfig struct {
	// AllowOverride permits the X-TradeHax-User header (and explicit user_id
	// request fields) to set the effective user without admin access. Only
	// honored outside production.
	AllowOverride bool `envconfig:"ALLOW_IDENTITY_OVERRIDE" default:"false"`
	// SessionKey is the HMAC key for session token verification. When unset,
	// tokens are parsed without signature verification.
	SessionKey SecretString `envconfig:"SESSION_KEY"`
}

// RateLimitConfig holds the per-endpoint-class fixed-window limits.
type RateLimitConfig struct {
	PublicMax     int           `envconfig:"RATE_LIMIT_PUBLIC_MAX" default:"60"`
	PublicWindow  time.Duration `envconfig:"RATE_LIMIT_PUBLIC_WINDOW" default:"1m"`
	BillingMax    int           `envconfig:"RATE_LIMIT_BILLING_MAX" default:"20"`
	BillingWindow time.Duration `envconfig:"RATE_LIMIT_BILLING_WINDOW" default:"1m"`
	WebhookMax    int           `envconfig:"RATE_LIMIT_WEBHOOK_MAX" default:"120"`
	WebhookWindow time.Duration `envconfig:"RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
}

// BillingConfig holds billing provider credentials and checkout settings.
type BillingConfig struct {
	WebhookSecret   SecretString `envconfig:"BILLING_WEBHOOK_SECRET"`
	StripeSecretKey SecretString `envconfig:"STRIPE_SECRET_KEY"`
	// CheckoutURLs is a JSON map of "provider.tier.cycle" (with looser
	// fallback keys) to hosted payment page URLs.
	CheckoutURLs JSONMap `envconfig:"CHECKOUT_URLS"`
	// StripePriceIDs maps "tier.cycle" (or bare tier) keys to Stripe Price
	// IDs for live checkout sessions.
	StripePriceIDs JSONMap `envconfig:"STRIPE_PRICE_IDS"`
	// AllowSimulatedCheckout returns a synthetic checkout URL when no real
	// provider destination exists. Honored only outside production.
	AllowSimulatedCheckout bool   `envconfig:"ALLOW_SIMULATED_CHECKOUT" default:"true"`
	CheckoutSuccessURL     string `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:8080/billing/success"`
	CheckoutCancelURL      string `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:8080/billing/cancel"`
}

// DatabaseConfig holds the optional subscription persistence settings. When
// URL is empty the service runs purely in-memory.
type DatabaseConfig struct {
	URL             SecretString  `envconfig:"DATABASE_URL"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// JSONMap is a string map populated from a JSON-encoded environment variable.
// envconfig's native map syntax splits on colons, which collides with URL
// values, so these variables carry JSON objects instead.
type JSONMap map[string]string

// Decode implements envconfig.Decoder.
func (m *JSONMap) Decode(value string) error {
	if value == "" {
		*m = nil
		return nil
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("value must be a JSON object of strings: %w", err)
	}
	*m = parsed
	return nil
}

// IsProduction reports whether the service is running in the production
// environment. Several degraded-trust behaviors (dev_fallback admin access,
// identity override, simulated checkout, unset webhook secret) are disabled
// in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

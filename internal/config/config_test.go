package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "tradehax-governance", cfg.Service)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60, cfg.RateLimit.PublicMax)
	assert.Equal(t, time.Minute, cfg.RateLimit.PublicWindow)
	assert.True(t, cfg.Billing.AllowSimulatedCheckout)
	assert.False(t, cfg.Identity.AllowOverride)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_MissingEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "")

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production") // only "prod" is accepted

	_, err := LoadConfig()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrValidation, cfgErr.Type)
}

func TestLoadConfig_SecretsRedacted(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ADMIN_API_KEY", "super-secret-admin-key")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.NotContains(t, cfg.Security.AdminAPIKey.String(), "super-secret")
	assert.Equal(t, "super-secret-admin-key", cfg.Security.AdminAPIKey.Unmask())
	assert.Equal(t, "sk_live_secret", cfg.Billing.StripeSecretKey.Unmask())
}

func TestLoadConfig_ListsAndMaps(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRUSTED_ORIGINS", "https://tradehax.example,https://app.tradehax.example")
	t.Setenv("CHECKOUT_URLS", `{"stripe.pro.monthly":"https://pay.example.com/pro"}`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://tradehax.example", "https://app.tradehax.example"}, cfg.Security.TrustedOrigins)
	assert.Equal(t, "https://pay.example.com/pro", cfg.Billing.CheckoutURLs["stripe.pro.monthly"])
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{Environment: "prod"}
	assert.True(t, cfg.IsProduction())

	for _, env := range []string{"local", "dev", "staging"} {
		cfg.Environment = env
		assert.False(t, cfg.IsProduction(), env)
	}
}

func TestLoadConfig_RateLimitOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_LIMIT_PUBLIC_MAX", "5")
	t.Setenv("RATE_LIMIT_PUBLIC_WINDOW", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.PublicMax)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.PublicWindow)
}

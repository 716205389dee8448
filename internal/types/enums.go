package types

// Tier identifies the subscription level for a user.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// AllTiers lists every defined tier in ascending order of capability.
var AllTiers = []Tier{TierFree, TierBasic, TierPro, TierElite}

// IsSubscriptionTier reports whether the given value is one of the four
// defined tiers. It is the total-safety guard used everywhere an external
// value (webhook metadata, request body, query string) is coerced into a Tier.
func IsSubscriptionTier(value string) bool {
	switch Tier(value) {
	case TierFree, TierBasic, TierPro, TierElite:
		return true
	default:
		return false
	}
}

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusTrialing SubscriptionStatus = "trialing"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
)

// Provider identifies the external billing provider backing a subscription.
type Provider string

const (
	ProviderNone     Provider = "none"
	ProviderStripe   Provider = "stripe"
	ProviderCoinbase Provider = "coinbase"
)

// BillingCycle determines the subscription renewal period.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Feature is a discrete metered capability subject to a daily quota.
type Feature string

const (
	FeatureAIChat      Feature = "ai_chat"
	FeatureHaxRunner   Feature = "hax_runner"
	FeatureSignalAlert Feature = "signal_alert"
	FeatureBotCreate   Feature = "bot_create"
)

// AllFeatures lists every metered feature.
var AllFeatures = []Feature{FeatureAIChat, FeatureHaxRunner, FeatureSignalAlert, FeatureBotCreate}

// IsMeteredFeature reports whether the given value names a known metered
// feature. Unknown features carry a zero daily limit and are never allowed.
func IsMeteredFeature(value string) bool {
	switch Feature(value) {
	case FeatureAIChat, FeatureHaxRunner, FeatureSignalAlert, FeatureBotCreate:
		return true
	default:
		return false
	}
}

// AdminMode identifies which credential type granted elevated access.
type AdminMode string

const (
	AdminModeKey           AdminMode = "admin_key"
	AdminModeSuperuserCode AdminMode = "superuser_code"
	AdminModeDevFallback   AdminMode = "dev_fallback"
)

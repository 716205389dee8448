package types

import "time"

// SubscriptionRecord is the per-user subscription state. It is the single
// source of truth for a user's tier; entitlement lookups read it live on
// every request and never cache the tier.
type SubscriptionRecord struct {
	UserID             string             `json:"user_id"`
	Tier               Tier               `json:"tier"`
	Status             SubscriptionStatus `json:"status"`
	Provider           Provider           `json:"provider"`
	BillingCycle       BillingCycle       `json:"billing_cycle"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

// SubscriptionPatch is a partial update applied to a SubscriptionRecord.
// Nil fields are left untouched. Used by webhook reconciliation.
type SubscriptionPatch struct {
	Status            *SubscriptionStatus
	Provider          *Provider
	BillingCycle      *BillingCycle
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd *bool
}

// UsageEvent is one append-only consumption record. Daily usage is derived
// by summing Units across same-calendar-day events for (UserID, Feature).
type UsageEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Feature   Feature           `json:"feature"`
	Units     int               `json:"units"`
	Source    string            `json:"source,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AllowanceResult is the computed verdict of a consumption request.
// It is derived on every check and never stored.
type AllowanceResult struct {
	Allowed        bool    `json:"allowed"`
	Feature        Feature `json:"feature"`
	RequestedUnits int     `json:"requested_units"`
	UsedToday      int     `json:"used_today"`
	DailyLimit     int     `json:"daily_limit"`
	RemainingToday int     `json:"remaining_today"`
	Reason         string  `json:"reason,omitempty"`
}

// AdminAccessResult is the outcome of an elevated-access check.
type AdminAccessResult struct {
	Allowed bool      `json:"allowed"`
	Mode    AdminMode `json:"mode,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// TierLimits holds the per-feature daily quotas for a tier.
// A limit of 0 means the feature is unavailable on that tier.
type TierLimits struct {
	AIChatDaily      int `json:"ai_chat_daily"`
	HaxRunnerDaily   int `json:"hax_runner_daily"`
	SignalAlertDaily int `json:"signal_alert_daily"`
	BotCreateDaily   int `json:"bot_create_daily"`
}

// ForFeature returns the daily quota for the given feature.
// Unknown features return 0 and are therefore never allowed.
func (l TierLimits) ForFeature(f Feature) int {
	switch f {
	case FeatureAIChat:
		return l.AIChatDaily
	case FeatureHaxRunner:
		return l.HaxRunnerDaily
	case FeatureSignalAlert:
		return l.SignalAlertDaily
	case FeatureBotCreate:
		return l.BotCreateDaily
	default:
		return 0
	}
}

// TierEntitlements holds the non-metered capability gates for a tier.
type TierEntitlements struct {
	OverclockAI      bool `json:"overclock_ai"`
	SignalConfidence int  `json:"signal_confidence"` // percentage, 0-100
	PriorityQueue    bool `json:"priority_queue"`
	MaxBots          int  `json:"max_bots"`
}

// PlanDefinition is the static description of one subscription tier.
// Plan definitions are immutable and loaded at process start.
type PlanDefinition struct {
	ID           Tier             `json:"id"`
	Name         string           `json:"name"`
	MonthlyCents int              `json:"monthly_cents"`
	YearlyCents  int              `json:"yearly_cents"`
	Features     []string         `json:"features"`
	Limits       TierLimits       `json:"limits"`
	Entitlements TierEntitlements `json:"entitlements"`
}

// Package billing implements the subscription, entitlement, and usage
// metering domain logic for the TradeHax governance core.
package billing

import "tradehax/internal/types"

// Catalog is the authoritative mapping from subscription tier to plan
// definition. It is the single source of truth for daily quotas and
// entitlements. Lookups are pure; the tier itself is always read live from
// the subscription store and never cached across requests.
type Catalog interface {
	// GetPlan returns the plan definition for the given tier.
	// Unknown tiers return the most restrictive (free) plan to fail safely.
	GetPlan(tier types.Tier) types.PlanDefinition

	// FeatureDailyLimit returns the tier's daily quota for the feature.
	// Unrecognized features return 0 and are therefore never allowed.
	FeatureDailyLimit(tier types.Tier, feature types.Feature) int
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
type staticCatalog struct {
	plans map[types.Tier]types.PlanDefinition
}

// planDefaults defines the hardcoded plan table:
//
//	| Tier  | ai_chat | hax_runner | signal_alert | bot_create | Overclock |
//	|-------|---------|------------|--------------|------------|-----------|
//	| free  | 15      | 10         | 3            | 1          | no        |
//	| basic | 50      | 40         | 12           | 3          | no        |
//	| pro   | 200     | 150        | 50           | 10         | yes       |
//	| elite | 1000    | 600        | 200          | 25         | yes       |
var planDefaults = map[types.Tier]types.PlanDefinition{
	types.TierFree: {
		ID:           types.TierFree,
		Name:         "Free",
		MonthlyCents: 0,
		YearlyCents:  0,
		Features:     []string{"AI chat (15/day)", "Hax runner (10/day)", "Signal alerts (3/day)", "1 bot"},
		Limits: types.TierLimits{
			AIChatDaily:      15,
			HaxRunnerDaily:   10,
			SignalAlertDaily: 3,
			BotCreateDaily:   1,
		},
		Entitlements: types.TierEntitlements{
			OverclockAI:      false,
			SignalConfidence: 60,
			PriorityQueue:    false,
			MaxBots:          1,
		},
	},
	types.TierBasic: {
		ID:           types.TierBasic,
		Name:         "Basic",
		MonthlyCents: 999,
		YearlyCents:  9900,
		Features:     []string{"AI chat (50/day)", "Hax runner (40/day)", "Signal alerts (12/day)", "3 bots"},
		Limits: types.TierLimits{
			AIChatDaily:      50,
			HaxRunnerDaily:   40,
			SignalAlertDaily: 12,
			BotCreateDaily:   3,
		},
		Entitlements: types.TierEntitlements{
			OverclockAI:      false,
			SignalConfidence: 75,
			PriorityQueue:    false,
			MaxBots:          3,
		},
	},
	types.TierPro: {
		ID:           types.TierPro,
		Name:         "Pro",
		MonthlyCents: 2499,
		YearlyCents:  24900,
		Features:     []string{"AI chat (200/day)", "Hax runner (150/day)", "Signal alerts (50/day)", "10 bots", "Overclock AI", "Priority queue"},
		Limits: types.TierLimits{
			AIChatDaily:      200,
			HaxRunnerDaily:   150,
			SignalAlertDaily: 50,
			BotCreateDaily:   10,
		},
		Entitlements: types.TierEntitlements{
			OverclockAI:      true,
			SignalConfidence: 90,
			PriorityQueue:    true,
			MaxBots:          10,
		},
	},
	types.TierElite: {
		ID:           types.TierElite,
		Name:         "Elite",
		MonthlyCents: 5999,
		YearlyCents:  59900,
		Features:     []string{"AI chat (1000/day)", "Hax runner (600/day)", "Signal alerts (200/day)", "25 bots", "Overclock AI", "Priority queue"},
		Limits: types.TierLimits{
			AIChatDaily:      1000,
			HaxRunnerDaily:   600,
			SignalAlertDaily: 200,
			BotCreateDaily:   25,
		},
		Entitlements: types.TierEntitlements{
			OverclockAI:      true,
			SignalConfidence: 99,
			PriorityQueue:    true,
			MaxBots:          25,
		},
	},
}

// freePlan is cached to avoid map lookups on the fallback path.
var freePlan = planDefaults[types.TierFree]

// NewStaticCatalog returns a Catalog backed by the hardcoded plan table.
// This is the standard production implementation; no database or external
// service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults into a new map so callers cannot mutate the package-level variable.
	m := make(map[types.Tier]types.PlanDefinition, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticCatalog{plans: m}
}

// GetPlan returns the plan definition for the given tier.
// If the tier is unknown, it returns the free plan as a safe default.
func (c *staticCatalog) GetPlan(tier types.Tier) types.PlanDefinition {
	if plan, ok := c.plans[tier]; ok {
		return plan
	}
	return freePlan
}

// FeatureDailyLimit returns the tier's daily quota for the feature.
func (c *staticCatalog) FeatureDailyLimit(tier types.Tier, feature types.Feature) int {
	return c.GetPlan(tier).Limits.ForFeature(feature)
}

package billing

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradehax/internal/types"
)

// TierSource provides the current tier for a user. Satisfied by
// *SubscriptionStore; abstracted so tests can pin tiers directly.
type TierSource interface {
	Get(userID string) types.SubscriptionRecord
}

// UsageLedger is the append-only record of feature consumption plus the
// allowance engine that decides whether a requested consumption is
// permitted. "Today" is UTC-calendar-day scoped, not a rolling 24 hours.
//
// CanConsume and Consume are deliberately NOT one atomic operation: two
// concurrent requests can both pass the check before either records
// consumption, briefly exceeding a daily quota under high concurrency.
// Callers that need strict accounting should use TryConsume, which runs the
// check and the append under one lock.
type UsageLedger struct {
	mu      sync.Mutex
	events  []types.UsageEvent
	tiers   TierSource
	catalog Catalog
	clock   types.Clock
}

// NewUsageLedger creates an empty ledger. clock may be nil (real clock).
func NewUsageLedger(tiers TierSource, catalog Catalog, clock types.Clock) *UsageLedger {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &UsageLedger{tiers: tiers, catalog: catalog, clock: clock}
}

// CanConsume reports whether userID may consume the requested units of
// feature today. The user's tier is read live from the subscription store on
// every call. requestedUnits is normalized to max(1, floor(requestedUnits)).
func (l *UsageLedger) CanConsume(userID string, feature types.Feature, requestedUnits int) types.AllowanceResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowance(userID, feature, requestedUnits)
}

// Consume unconditionally appends a usage event. Callers are responsible for
// checking CanConsume first; Consume itself never rejects.
func (l *UsageLedger) Consume(userID string, feature types.Feature, units int, source string, metadata map[string]string) types.UsageEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(userID, feature, units, source, metadata)
}

// TryConsume runs the allowance check and, when allowed, records the
// consumption under a single lock. This is the atomic alternative to the
// check-then-consume pair for callers that must not over-admit.
func (l *UsageLedger) TryConsume(userID string, feature types.Feature, units int, source string, metadata map[string]string) types.AllowanceResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := l.allowance(userID, feature, units)
	if res.Allowed {
		l.append(userID, feature, units, source, metadata)
	}
	return res
}

// UsedToday returns the units consumed today for (userID, feature).
func (l *UsageLedger) UsedToday(userID string, feature types.Feature) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedToday(userID, feature)
}

// FeatureUsage is one row of a user's daily usage summary.
type FeatureUsage struct {
	Feature        types.Feature `json:"feature"`
	UsedToday      int           `json:"used_today"`
	DailyLimit     int           `json:"daily_limit"`
	RemainingToday int           `json:"remaining_today"`
}

// Summary reports today's usage for every metered feature at the user's
// current tier.
func (l *UsageLedger) Summary(userID string) []FeatureUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	tier := l.tiers.Get(userID).Tier
	out := make([]FeatureUsage, 0, len(types.AllFeatures))
	for _, feature := range types.AllFeatures {
		limit := l.catalog.FeatureDailyLimit(tier, feature)
		used := l.usedToday(userID, feature)
		remaining := limit - used
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, FeatureUsage{
			Feature:        feature,
			UsedToday:      used,
			DailyLimit:     limit,
			RemainingToday: remaining,
		})
	}
	return out
}

// allowance computes the verdict. Caller must hold l.mu.
func (l *UsageLedger) allowance(userID string, feature types.Feature, requestedUnits int) types.AllowanceResult {
	units := normalizeUnits(requestedUnits)
	tier := l.tiers.Get(userID).Tier
	limit := l.catalog.FeatureDailyLimit(tier, feature)
	used := l.usedToday(userID, feature)

	res := types.AllowanceResult{
		Feature:        feature,
		RequestedUnits: units,
		UsedToday:      used,
		DailyLimit:     limit,
	}

	if limit <= 0 {
		res.Reason = fmt.Sprintf("feature %s is not available on the %s tier", feature, tier)
		return res
	}

	if used+units > limit {
		res.Reason = fmt.Sprintf("daily limit of %d reached for %s", limit, feature)
		// A rejection reports what is left without the requested units.
		if remaining := limit - used; remaining > 0 {
			res.RemainingToday = remaining
		}
		return res
	}

	res.Allowed = true
	res.RemainingToday = limit - (used + units)
	return res
}

// append records one event. Caller must hold l.mu.
func (l *UsageLedger) append(userID string, feature types.Feature, units int, source string, metadata map[string]string) types.UsageEvent {
	event := types.UsageEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Feature:   feature,
		Units:     normalizeUnits(units),
		Source:    source,
		Timestamp: l.clock.Now(),
		Metadata:  metadata,
	}
	l.events = append(l.events, event)
	return event
}

// usedToday sums same-calendar-day units. Caller must hold l.mu.
func (l *UsageLedger) usedToday(userID string, feature types.Feature) int {
	now := l.clock.Now()
	total := 0
	for _, e := range l.events {
		if e.UserID == userID && e.Feature == feature && types.SameCalendarDay(e.Timestamp, now) {
			total += e.Units
		}
	}
	return total
}

// EventCount returns the total number of recorded events. For diagnostics
// and tests.
func (l *UsageLedger) EventCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// normalizeUnits clamps a requested unit count to at least one whole unit.
func normalizeUnits(units int) int {
	if units < 1 {
		return 1
	}
	return units
}

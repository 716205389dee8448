package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradehax/internal/types"
)

// persistTimeout bounds each best-effort persistence write.
const persistTimeout = 5 * time.Second

// Persister is the optional durability hook for subscription records.
// Writes are fire-and-forget: a persistence failure is logged as a warning
// and never fails the request; the in-memory record remains authoritative.
type Persister interface {
	SaveSubscription(ctx context.Context, rec types.SubscriptionRecord) error
}

// SubscriptionStore holds the per-user subscription records. It is the
// single source of truth for a user's tier. Records are created on first
// mutation; reads without a record synthesize a default free/active record
// without persisting it.
type SubscriptionStore struct {
	mu        sync.Mutex
	records   map[string]types.SubscriptionRecord
	clock     types.Clock
	persister Persister
	logger    *slog.Logger
}

// NewSubscriptionStore creates an empty SubscriptionStore. clock may be nil
// (real clock), persister may be nil (no durability hook), logger may be nil
// (slog.Default).
func NewSubscriptionStore(clock types.Clock, persister Persister, logger *slog.Logger) *SubscriptionStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionStore{
		records:   make(map[string]types.SubscriptionRecord),
		clock:     clock,
		persister: persister,
		logger:    logger,
	}
}

// Get returns the user's subscription record. If none exists, a default
// free/active/none record is synthesized -- it is NOT stored, so a read
// without a write never creates state.
func (s *SubscriptionStore) Get(userID string) types.SubscriptionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		return cloneRecord(rec)
	}
	return s.defaultRecord(userID)
}

// SetTier unconditionally overwrites the user's tier, stamping UpdatedAt and
// preserving or initializing the billing period bounds. A canceled record is
// revived to active. Unknown tiers are rejected and never stored.
func (s *SubscriptionStore) SetTier(userID string, tier types.Tier, provider types.Provider, metadata map[string]string) (types.SubscriptionRecord, error) {
	if !types.IsSubscriptionTier(string(tier)) {
		return types.SubscriptionRecord{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownTier,
			"unknown subscription tier",
			nil,
			map[string]any{"tier": string(tier)},
		)
	}

	s.mu.Lock()

	now := s.clock.Now()
	rec, ok := s.records[userID]
	if !ok {
		rec = s.defaultRecord(userID)
	}

	rec.Tier = tier
	rec.Provider = provider
	rec.Status = types.SubStatusActive
	rec.CancelAtPeriodEnd = false
	rec.UpdatedAt = now

	if cycle, ok := metadata["billing_cycle"]; ok && types.BillingCycle(cycle) == types.CycleYearly {
		rec.BillingCycle = types.CycleYearly
	} else if rec.BillingCycle == "" {
		rec.BillingCycle = types.CycleMonthly
	}

	// Initialize period bounds on first activation or after expiry;
	// an in-flight period is preserved.
	if rec.CurrentPeriodStart.IsZero() || !now.Before(rec.CurrentPeriodEnd) {
		rec.CurrentPeriodStart = now
		if rec.BillingCycle == types.CycleYearly {
			rec.CurrentPeriodEnd = now.AddDate(1, 0, 0)
		} else {
			rec.CurrentPeriodEnd = now.AddDate(0, 1, 0)
		}
	}

	if len(metadata) > 0 {
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			rec.Metadata[k] = v
		}
	}

	s.records[userID] = rec
	out := cloneRecord(rec)
	s.mu.Unlock()

	s.persist(out)
	return out, nil
}

// CancelAtPeriodEnd marks the subscription for cancellation at the end of
// the current period. The tier is unchanged; the caller retains access until
// an external lifecycle process flips the status.
func (s *SubscriptionStore) CancelAtPeriodEnd(userID string) types.SubscriptionRecord {
	return s.mutate(userID, func(rec *types.SubscriptionRecord) {
		rec.CancelAtPeriodEnd = true
	})
}

// Reactivate clears a pending cancellation. Tier and status are unchanged
// except that a canceled status is restored to active.
func (s *SubscriptionStore) Reactivate(userID string) types.SubscriptionRecord {
	return s.mutate(userID, func(rec *types.SubscriptionRecord) {
		rec.CancelAtPeriodEnd = false
		if rec.Status == types.SubStatusCanceled {
			rec.Status = types.SubStatusActive
		}
	})
}

// UpdateRecord applies a partial patch to the user's record. Used by webhook
// reconciliation for status and provider updates.
func (s *SubscriptionStore) UpdateRecord(userID string, patch types.SubscriptionPatch) types.SubscriptionRecord {
	return s.mutate(userID, func(rec *types.SubscriptionRecord) {
		if patch.Status != nil {
			rec.Status = *patch.Status
		}
		if patch.Provider != nil {
			rec.Provider = *patch.Provider
		}
		if patch.BillingCycle != nil {
			rec.BillingCycle = *patch.BillingCycle
		}
		if patch.CurrentPeriodEnd != nil {
			rec.CurrentPeriodEnd = *patch.CurrentPeriodEnd
		}
		if patch.CancelAtPeriodEnd != nil {
			rec.CancelAtPeriodEnd = *patch.CancelAtPeriodEnd
		}
	})
}

// mutate loads (or synthesizes) the record, applies fn, stamps UpdatedAt,
// stores the result, and fires the persistence hook.
func (s *SubscriptionStore) mutate(userID string, fn func(*types.SubscriptionRecord)) types.SubscriptionRecord {
	s.mu.Lock()

	rec, ok := s.records[userID]
	if !ok {
		rec = s.defaultRecord(userID)
	}
	fn(&rec)
	rec.UpdatedAt = s.clock.Now()
	s.records[userID] = rec

	out := cloneRecord(rec)
	s.mu.Unlock()

	s.persist(out)
	return out
}

// persist fires the best-effort durability hook. Failures are logged and
// swallowed; the request path never blocks on or fails from persistence.
func (s *SubscriptionStore) persist(rec types.SubscriptionRecord) {
	if s.persister == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persister.SaveSubscription(ctx, rec); err != nil {
			s.logger.Warn("subscription persistence degraded, continuing in-memory",
				slog.String("user_id", rec.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Warm seeds the in-memory store from persisted records at boot. Records
// with unknown tiers are skipped rather than stored. No persistence hooks
// fire; the records came from the persister.
func (s *SubscriptionStore) Warm(records []types.SubscriptionRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if rec.UserID == "" || !types.IsSubscriptionTier(string(rec.Tier)) {
			s.logger.Warn("skipping invalid persisted subscription record",
				slog.String("user_id", rec.UserID),
				slog.String("tier", string(rec.Tier)),
			)
			continue
		}
		s.records[rec.UserID] = cloneRecord(rec)
		loaded++
	}
	return loaded
}

// defaultRecord synthesizes the free/active/none record returned for users
// with no stored subscription. Callers must not insert it into the map.
func (s *SubscriptionStore) defaultRecord(userID string) types.SubscriptionRecord {
	return types.SubscriptionRecord{
		UserID:       userID,
		Tier:         types.TierFree,
		Status:       types.SubStatusActive,
		Provider:     types.ProviderNone,
		BillingCycle: types.CycleMonthly,
		UpdatedAt:    s.clock.Now(),
	}
}

// cloneRecord copies a record, including its metadata map, so callers can
// never mutate stored state through a returned value.
func cloneRecord(rec types.SubscriptionRecord) types.SubscriptionRecord {
	if rec.Metadata != nil {
		md := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			md[k] = v
		}
		rec.Metadata = md
	}
	return rec
}

// Package ratelimit implements fixed-window request rate limiting keyed by
// (route class, caller address). Counters are process-local and intentionally
// non-durable: a restart clears all windows, which is an accepted (and tested)
// property of the system, not a bug.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"tradehax/internal/types"
)

// Record is one fixed-window counter. Created lazily on the first request in
// a window and destroyed when the window expires and is swept.
type Record struct {
	Key     string
	Count   int
	ResetAt time.Time
}

// Result is the outcome of a single enforcement call.
type Result struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Remaining is the number of requests remaining in the current window.
	Remaining int
	// RetryAfter is the whole-second delay to report on rejection,
	// rounded up. Zero when the request is allowed.
	RetryAfter int
	// ResetAt is the time when the current window resets.
	ResetAt time.Time
}

// Store abstracts the backing store for rate limit records.
// The default implementation is an in-process map; an alternate
// implementation can delegate to an external key-value store without
// changing call sites.
type Store interface {
	// Get returns the record for key, if present.
	Get(key string) (Record, bool)
	// Put inserts or replaces the record for rec.Key.
	Put(rec Record)
	// Sweep removes every record whose window expired at or before now,
	// returning the number of records removed.
	Sweep(now time.Time) int
}

// MemoryStore is the default in-process Store backed by a mutex-guarded map.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns the record for key, if present.
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Put inserts or replaces the record for rec.Key.
func (s *MemoryStore) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = rec
}

// Sweep removes all expired records. O(n) over the whole store.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.ResetAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live records. Intended for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Limiter enforces fixed-window limits against a Store.
//
// Each enforcement performs an opportunistic full sweep of expired records
// first. That keeps the key space bounded without a background task, at the
// cost of O(n) work per call -- acceptable for the small key spaces this
// system sees. The get/increment/put sequence runs under the Limiter's own
// mutex so counters are monotonically non-decreasing within a window even
// under concurrent requests.
type Limiter struct {
	mu    sync.Mutex
	store Store
	clock types.Clock
}

// NewLimiter creates a Limiter over the given store. A nil clock defaults to
// the real clock.
func NewLimiter(store Store, clock types.Clock) *Limiter {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Limiter{store: store, clock: clock}
}

// Enforce records one request against key and reports whether it is allowed.
//
// Fixed window, not sliding: the first request for a key creates a record
// with count=1 and resetAt=now+window. Subsequent requests within the window
// increment the count and are rejected once count exceeds max. A request at
// or after resetAt resets the counter to 1 with a fresh window.
func (l *Limiter) Enforce(key string, max int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	// Opportunistic expiry of the whole store before every enforcement.
	l.store.Sweep(now)

	rec, ok := l.store.Get(key)
	if !ok || !now.Before(rec.ResetAt) {
		rec = Record{Key: key, Count: 1, ResetAt: now.Add(window)}
		l.store.Put(rec)
		return Result{
			Allowed:   true,
			Remaining: max - 1,
			ResetAt:   rec.ResetAt,
		}
	}

	rec.Count++
	l.store.Put(rec)

	if rec.Count > max {
		retryAfter := int(math.Ceil(rec.ResetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter,
			ResetAt:    rec.ResetAt,
		}
	}

	return Result{
		Allowed:   true,
		Remaining: max - rec.Count,
		ResetAt:   rec.ResetAt,
	}
}

// Key builds the canonical rate limit key from a route-class prefix and the
// caller address.
func Key(prefix, callerAddr string) string {
	if callerAddr == "" {
		callerAddr = "unknown"
	}
	return prefix + ":" + callerAddr
}

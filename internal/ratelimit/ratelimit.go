// Package ratelimit implements the Token Bucket Registry (C3): per-key
// leaky buckets with lazy refill, serialized per key but otherwise
// lock-free across keys so unrelated rules never contend.
//
// The teacher's internal/ratelimit/ratelimit.go rate-limited by tenant
// against a Redis-backed fixed window; this registry keeps its
// constructor-plus-Middleware-adjacent shape but replaces the algorithm
// with an in-process token bucket, per spec.md §4.3, and drops Redis (see
// DESIGN.md — the spec mandates in-memory, single-process state here).
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Decision is the outcome of a TryConsume call.
type Decision struct {
	Allowed    bool
	RetryAfter int // seconds, only meaningful when !Allowed
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Registry holds one bucket per key. Keys are created lazily on first use.
type Registry struct {
	buckets sync.Map // string -> *bucket
	now     func() time.Time
}

// NewRegistry constructs an empty token bucket registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// TryConsume implements spec.md §4.3 verbatim: create-if-absent with
// tokens=burst; on every call, refresh rps/burst from the arguments (rules
// may be edited live), refill by elapsed time clamped to burst, then
// consume one token if available.
func (reg *Registry) TryConsume(key string, rps, burst float64) Decision {
	b := reg.bucketFor(key, burst)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := reg.now()
	elapsedSec := now.Sub(b.lastRefill).Seconds()
	if elapsedSec > 0 {
		b.tokens += elapsedSec * rps
		if b.tokens > burst {
			b.tokens = burst
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true}
	}

	retryAfter := int(math.Ceil((1 - b.tokens) / rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

func (reg *Registry) bucketFor(key string, burst float64) *bucket {
	if v, ok := reg.buckets.Load(key); ok {
		return v.(*bucket)
	}
	b := &bucket{tokens: burst, lastRefill: reg.now()}
	actual, _ := reg.buckets.LoadOrStore(key, b)
	return actual.(*bucket)
}

// ClearAll resets the registry. Test-only, per spec.md §4.3.
func (reg *Registry) ClearAll() {
	reg.buckets.Range(func(k, _ any) bool {
		reg.buckets.Delete(k)
		return true
	})
}

// Snapshot reports tokens/lastRefill for a key without consuming, for the
// ambient /rules/:id/bucket debug endpoint. Returns ok=false if the key has
// never been consumed from.
func (reg *Registry) Snapshot(key string) (tokens float64, lastRefill time.Time, ok bool) {
	v, found := reg.buckets.Load(key)
	if !found {
		return 0, time.Time{}, false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens, b.lastRefill, true
}

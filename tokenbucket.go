package ratelimit

import (
	"fmt"
	"sync"
)

// TokenBucket is the mirror image of LeakyBucket: a pool of available units
// that grows by refillAmount per whole refillInterval of elapsed ticks,
// capped at capacity, and shrinks by the units each admission consumes. The
// bucket starts full, so a full-capacity burst is admissible immediately.
type TokenBucket struct {
	capacity       Uint
	refillInterval Uint
	refillAmount   Uint

	mu             sync.Mutex
	available      Uint
	lastRefillTick Uint
}

// NewTokenBucket returns a bucket holding at most capacity units, gaining
// refillAmount units every refillInterval ticks, starting full. All
// parameters must be non-zero.
func NewTokenBucket(capacity, refillInterval, refillAmount Uint) (*TokenBucket, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0")
	}
	if refillInterval == 0 {
		return nil, fmt.Errorf("ratelimit: refillInterval must be > 0")
	}
	if refillAmount == 0 {
		return nil, fmt.Errorf("ratelimit: refillAmount must be > 0")
	}
	return &TokenBucket{
		capacity:       capacity,
		refillInterval: refillInterval,
		refillAmount:   refillAmount,
		available:      capacity,
	}, nil
}

// TryAcquire attempts to admit units at tick.
func (t *TokenBucket) TryAcquire(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !t.mu.TryLock() {
		return ErrContention
	}
	defer t.mu.Unlock()

	if tick < t.lastRefillTick {
		return ErrExpiredTick
	}
	if units > t.capacity {
		// Permanently impossible; folded into the generic code on this path.
		return ErrInsufficientCapacity
	}
	t.refill(tick)

	if units > t.available {
		return ErrInsufficientCapacity
	}
	t.available -= units
	return nil
}

// TryAcquireVerbose is TryAcquire with diagnostic error payloads.
func (t *TokenBucket) TryAcquireVerbose(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !t.mu.TryLock() {
		return ErrContention
	}
	defer t.mu.Unlock()

	if tick < t.lastRefillTick {
		return &ExpiredTickError{MinAcceptableTick: t.lastRefillTick}
	}
	if units > t.capacity {
		return &BeyondCapacityError{Acquiring: units, Capacity: t.capacity}
	}
	t.refill(tick)

	if units <= t.available {
		t.available -= units
		return nil
	}
	// Whole refill intervals needed to cover the deficit.
	deficit := units - t.available
	retry := satMul(t.refillInterval, ceilDiv(deficit, t.refillAmount))
	return &InsufficientCapacityError{Acquiring: units, Available: t.available, RetryAfterTicks: retry}
}

// CapacityRemaining reports the units still admissible at tick.
func (t *TokenBucket) CapacityRemaining(tick Uint) (Uint, error) {
	if !t.mu.TryLock() {
		return 0, ErrContention
	}
	defer t.mu.Unlock()

	if tick < t.lastRefillTick {
		return 0, ErrExpiredTick
	}
	t.refill(tick)
	return t.available, nil
}

// CapacityRemainingOrZero is CapacityRemaining with failures reported as 0.
func (t *TokenBucket) CapacityRemainingOrZero(tick Uint) Uint {
	remaining, err := t.CapacityRemaining(tick)
	if err != nil {
		return 0
	}
	return remaining
}

// refill credits whole elapsed intervals, capped at capacity, and advances
// lastRefillTick by exactly those intervals to preserve the refill phase.
// Callers hold t.mu and have already rejected ticks before lastRefillTick.
func (t *TokenBucket) refill(tick Uint) {
	elapsed := tick - t.lastRefillTick
	times := elapsed / t.refillInterval
	if times == 0 {
		return
	}
	t.available = min(satAdd(t.available, satMul(times, t.refillAmount)), t.capacity)
	t.lastRefillTick = satAdd(t.lastRefillTick, satMul(times, t.refillInterval))
}

package ratelimit

import (
	"fmt"
	"sync"
)

// LeakyBucket models a bucket that fills by the units it admits and drains
// leakAmount units per whole leakInterval of elapsed ticks. Partial
// intervals never leak; the drain timestamp advances only by whole
// intervals, so the leak phase established at tick 0 is preserved no matter
// when operations arrive. The bucket starts empty.
type LeakyBucket struct {
	capacity     Uint
	leakInterval Uint
	leakAmount   Uint

	mu           sync.Mutex
	level        Uint
	lastLeakTick Uint
}

// NewLeakyBucket returns a bucket holding at most capacity units, draining
// leakAmount units every leakInterval ticks. All parameters must be
// non-zero.
func NewLeakyBucket(capacity, leakInterval, leakAmount Uint) (*LeakyBucket, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0")
	}
	if leakInterval == 0 {
		return nil, fmt.Errorf("ratelimit: leakInterval must be > 0")
	}
	if leakAmount == 0 {
		return nil, fmt.Errorf("ratelimit: leakAmount must be > 0")
	}
	return &LeakyBucket{
		capacity:     capacity,
		leakInterval: leakInterval,
		leakAmount:   leakAmount,
	}, nil
}

// TryAcquire attempts to admit units at tick.
func (l *LeakyBucket) TryAcquire(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !l.mu.TryLock() {
		return ErrContention
	}
	defer l.mu.Unlock()

	if tick < l.lastLeakTick {
		return ErrExpiredTick
	}
	if units > l.capacity {
		// Permanently impossible; folded into the generic code on this path.
		return ErrInsufficientCapacity
	}
	l.leak(tick)

	if units > satSub(l.capacity, l.level) {
		return ErrInsufficientCapacity
	}
	l.level = satAdd(l.level, units)
	return nil
}

// TryAcquireVerbose is TryAcquire with diagnostic error payloads.
func (l *LeakyBucket) TryAcquireVerbose(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !l.mu.TryLock() {
		return ErrContention
	}
	defer l.mu.Unlock()

	if tick < l.lastLeakTick {
		return &ExpiredTickError{MinAcceptableTick: l.lastLeakTick}
	}
	if units > l.capacity {
		return &BeyondCapacityError{Acquiring: units, Capacity: l.capacity}
	}
	l.leak(tick)

	available := satSub(l.capacity, l.level)
	if units <= available {
		l.level = satAdd(l.level, units)
		return nil
	}
	// Whole leak intervals needed to drain the deficit, phase-corrected
	// against the last leak boundary.
	deficit := satSub(satAdd(l.level, units), l.capacity)
	intervals := ceilDiv(deficit, l.leakAmount)
	retry := satSub(satMul(intervals, l.leakInterval), tick-l.lastLeakTick)
	return &InsufficientCapacityError{Acquiring: units, Available: available, RetryAfterTicks: retry}
}

// CapacityRemaining reports the units still admissible at tick.
func (l *LeakyBucket) CapacityRemaining(tick Uint) (Uint, error) {
	if !l.mu.TryLock() {
		return 0, ErrContention
	}
	defer l.mu.Unlock()

	if tick < l.lastLeakTick {
		return 0, ErrExpiredTick
	}
	l.leak(tick)
	return satSub(l.capacity, l.level), nil
}

// CapacityRemainingOrZero is CapacityRemaining with failures reported as 0.
func (l *LeakyBucket) CapacityRemainingOrZero(tick Uint) Uint {
	remaining, err := l.CapacityRemaining(tick)
	if err != nil {
		return 0
	}
	return remaining
}

// leak drains whole elapsed intervals and advances lastLeakTick by exactly
// those intervals, never snapping it to tick. Callers hold l.mu and have
// already rejected ticks before lastLeakTick.
func (l *LeakyBucket) leak(tick Uint) {
	elapsed := tick - l.lastLeakTick
	times := elapsed / l.leakInterval
	if times == 0 {
		return
	}
	l.level = satSub(l.level, satMul(times, l.leakAmount))
	l.lastLeakTick = satAdd(l.lastLeakTick, satMul(times, l.leakInterval))
}

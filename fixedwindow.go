package ratelimit

import (
	"fmt"
	"sync"
)

// FixedWindowCounter admits up to capacity units per fixed window of
// windowTicks ticks. Windows are aligned to tick 0: the window containing
// tick t starts at (t/windowTicks)*windowTicks. When a tick lands in a
// later window the counter resets once and adopts the new start.
//
// A full-capacity burst at the tail of one window followed by another at
// the head of the next is inherent to this algorithm family and is not
// smoothed here; use SlidingWindowCounter or ApproximateSlidingWindow when
// boundary bursts matter.
type FixedWindowCounter struct {
	capacity    Uint
	windowTicks Uint

	mu          sync.Mutex
	count       Uint
	windowStart Uint
}

// NewFixedWindowCounter returns a counter allowing capacity units per
// windowTicks-long window. Both parameters must be non-zero.
func NewFixedWindowCounter(capacity, windowTicks Uint) (*FixedWindowCounter, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0")
	}
	if windowTicks == 0 {
		return nil, fmt.Errorf("ratelimit: windowTicks must be > 0")
	}
	return &FixedWindowCounter{
		capacity:    capacity,
		windowTicks: windowTicks,
	}, nil
}

// TryAcquire attempts to admit units at tick.
func (f *FixedWindowCounter) TryAcquire(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !f.mu.TryLock() {
		return ErrContention
	}
	defer f.mu.Unlock()

	if tick < f.windowStart {
		return ErrExpiredTick
	}
	if units > f.capacity {
		// Permanently impossible; folded into the generic code on this path.
		return ErrInsufficientCapacity
	}
	f.roll(tick)

	if units > satSub(f.capacity, f.count) {
		return ErrInsufficientCapacity
	}
	f.count += units
	return nil
}

// TryAcquireVerbose is TryAcquire with diagnostic error payloads.
func (f *FixedWindowCounter) TryAcquireVerbose(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !f.mu.TryLock() {
		return ErrContention
	}
	defer f.mu.Unlock()

	if tick < f.windowStart {
		return &ExpiredTickError{MinAcceptableTick: f.windowStart}
	}
	if units > f.capacity {
		return &BeyondCapacityError{Acquiring: units, Capacity: f.capacity}
	}
	f.roll(tick)

	available := satSub(f.capacity, f.count)
	if units <= available {
		f.count += units
		return nil
	}
	// The counter only frees up when the next window begins.
	retry := satSub(satAdd(f.windowStart, f.windowTicks), tick)
	return &InsufficientCapacityError{Acquiring: units, Available: available, RetryAfterTicks: retry}
}

// CapacityRemaining reports the units still admissible at tick.
func (f *FixedWindowCounter) CapacityRemaining(tick Uint) (Uint, error) {
	if !f.mu.TryLock() {
		return 0, ErrContention
	}
	defer f.mu.Unlock()

	if tick < f.windowStart {
		return 0, ErrExpiredTick
	}
	f.roll(tick)
	return satSub(f.capacity, f.count), nil
}

// CapacityRemainingOrZero is CapacityRemaining with failures reported as 0.
func (f *FixedWindowCounter) CapacityRemainingOrZero(tick Uint) Uint {
	remaining, err := f.CapacityRemaining(tick)
	if err != nil {
		return 0
	}
	return remaining
}

// roll resets the counter when tick falls in a later window than the one
// currently stored. Callers hold f.mu and have already rejected ticks
// before f.windowStart.
func (f *FixedWindowCounter) roll(tick Uint) {
	start := tick / f.windowTicks * f.windowTicks
	if start != f.windowStart {
		f.count = 0
		f.windowStart = start
	}
}

package ratelimit

import (
	"fmt"
	"sort"
	"sync"
)

// SlidingWindowCounter gives exact sliding-window accounting by splitting
// the window into bucketCount fixed buckets of bucketTicks each, reused
// circularly. A slot is zeroed and re-stamped lazily the first time it is
// touched after its stored start no longer matches the aligned start that
// owns the slot; there is no background sweep. Admission sums every bucket
// whose stored start still lies inside the sliding window ending at the
// current tick, at O(bucketCount) cost per operation.
type SlidingWindowCounter struct {
	capacity    Uint
	bucketTicks Uint
	bucketCount Uint

	mu           sync.Mutex
	buckets      []Uint
	bucketStarts []Uint
	lastBucket   int
}

// NewSlidingWindowCounter returns a counter admitting at most capacity
// units per window of bucketTicks*bucketCount ticks. All parameters must be
// non-zero, and bucketCount must be addressable as a slice length.
func NewSlidingWindowCounter(capacity, bucketTicks, bucketCount Uint) (*SlidingWindowCounter, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0")
	}
	if bucketTicks == 0 {
		return nil, fmt.Errorf("ratelimit: bucketTicks must be > 0")
	}
	if bucketCount == 0 {
		return nil, fmt.Errorf("ratelimit: bucketCount must be > 0")
	}
	if Uint(int(bucketCount)) != bucketCount || int(bucketCount) < 0 {
		return nil, fmt.Errorf("ratelimit: bucketCount %d does not fit in memory", bucketCount)
	}
	return &SlidingWindowCounter{
		capacity:     capacity,
		bucketTicks:  bucketTicks,
		bucketCount:  bucketCount,
		buckets:      make([]Uint, bucketCount),
		bucketStarts: make([]Uint, bucketCount),
	}, nil
}

// TryAcquire attempts to admit units at tick.
func (s *SlidingWindowCounter) TryAcquire(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !s.mu.TryLock() {
		return ErrContention
	}
	defer s.mu.Unlock()

	if err := s.checkTick(tick); err != nil {
		return err
	}
	if units > s.capacity {
		// Permanently impossible; folded into the generic code on this path.
		return ErrInsufficientCapacity
	}
	idx := s.touch(tick)

	if s.windowTotal(tick) > satSub(s.capacity, units) {
		return ErrInsufficientCapacity
	}
	s.buckets[idx] = satAdd(s.buckets[idx], units)
	return nil
}

// TryAcquireVerbose is TryAcquire with diagnostic error payloads.
func (s *SlidingWindowCounter) TryAcquireVerbose(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !s.mu.TryLock() {
		return ErrContention
	}
	defer s.mu.Unlock()

	if err := s.checkTick(tick); err != nil {
		return &ExpiredTickError{MinAcceptableTick: s.bucketStarts[s.lastBucket]}
	}
	if units > s.capacity {
		return &BeyondCapacityError{Acquiring: units, Capacity: s.capacity}
	}
	idx := s.touch(tick)

	total := s.windowTotal(tick)
	available := satSub(s.capacity, total)
	if units <= available {
		s.buckets[idx] = satAdd(s.buckets[idx], units)
		return nil
	}
	return &InsufficientCapacityError{
		Acquiring:       units,
		Available:       available,
		RetryAfterTicks: s.retryEstimate(tick, units, available),
	}
}

// CapacityRemaining reports the units still admissible at tick.
func (s *SlidingWindowCounter) CapacityRemaining(tick Uint) (Uint, error) {
	if !s.mu.TryLock() {
		return 0, ErrContention
	}
	defer s.mu.Unlock()

	if err := s.checkTick(tick); err != nil {
		return 0, err
	}
	s.touch(tick)
	return satSub(s.capacity, s.windowTotal(tick)), nil
}

// CapacityRemainingOrZero is CapacityRemaining with failures reported as 0.
func (s *SlidingWindowCounter) CapacityRemainingOrZero(tick Uint) Uint {
	remaining, err := s.CapacityRemaining(tick)
	if err != nil {
		return 0
	}
	return remaining
}

// windowTicks is the total sliding window length.
func (s *SlidingWindowCounter) windowTicks() Uint {
	return satMul(s.bucketTicks, s.bucketCount)
}

// checkTick rejects ticks older than the most recently stamped slot. The
// zero start of a never-touched limiter accepts any tick.
func (s *SlidingWindowCounter) checkTick(tick Uint) error {
	if last := s.bucketStarts[s.lastBucket]; last > 0 && tick < last {
		return ErrExpiredTick
	}
	return nil
}

// touch locates the circular slot owning tick, lazily resets it when its
// stored start belongs to an earlier cycle, and records it as the most
// recent slot. Callers hold s.mu.
func (s *SlidingWindowCounter) touch(tick Uint) int {
	idx := int((tick / s.bucketTicks) % s.bucketCount)
	start := tick / s.bucketTicks * s.bucketTicks
	if s.bucketStarts[idx] != start {
		s.buckets[idx] = 0
		s.bucketStarts[idx] = start
	}
	s.lastBucket = idx
	return idx
}

// windowTotal sums every bucket whose stored start lies inside the sliding
// window ending at tick. Callers hold s.mu.
func (s *SlidingWindowCounter) windowTotal(tick Uint) Uint {
	floor := satSub(tick, s.windowTicks())
	var total Uint
	for i, start := range s.bucketStarts {
		if start >= floor && start <= tick {
			total = satAdd(total, s.buckets[i])
		}
	}
	return total
}

// retryEstimate walks the retained buckets oldest-first and reports when
// enough of them will have aged out of the window to cover the deficit.
// It is an estimate from the engine's own decay model, not a guarantee.
// Callers hold s.mu.
func (s *SlidingWindowCounter) retryEstimate(tick, units, available Uint) Uint {
	floor := satSub(tick, s.windowTicks())
	type slot struct{ start, count Uint }
	live := make([]slot, 0, len(s.buckets))
	for i, start := range s.bucketStarts {
		if start >= floor && start <= tick && s.buckets[i] > 0 {
			live = append(live, slot{start, s.buckets[i]})
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].start < live[j].start })

	released := Uint(0)
	for _, sl := range live {
		released = satAdd(released, sl.count)
		if satAdd(available, released) >= units {
			// This bucket leaves the window one tick after start+window.
			return satSub(satAdd(satAdd(sl.start, s.windowTicks()), 1), tick)
		}
	}
	return s.windowTicks()
}

package ratelimit

import (
	"fmt"
	"sync"
)

// ApproximateSlidingWindow approximates sliding-window accounting with O(1)
// state: two calendar windows of windowTicks each, selected by the parity
// of tick/windowTicks. The window holding the current tick counts at full
// weight; the previous window counts scaled by how much of it still
// overlaps the sliding view. The interpolation trades a bounded accounting
// error for constant memory, which is the point of the algorithm rather
// than a defect to correct.
//
// All comparisons happen in "weighted" units (units scaled by windowTicks)
// so the two windows share a common basis.
type ApproximateSlidingWindow struct {
	capacity    Uint
	windowTicks Uint

	mu           sync.Mutex
	windows      [2]Uint
	windowStarts [2]Uint
	current      int
}

// NewApproximateSlidingWindow returns a limiter admitting roughly capacity
// units per sliding window of windowTicks ticks. Both parameters must be
// non-zero.
func NewApproximateSlidingWindow(capacity, windowTicks Uint) (*ApproximateSlidingWindow, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0")
	}
	if windowTicks == 0 {
		return nil, fmt.Errorf("ratelimit: windowTicks must be > 0")
	}
	return &ApproximateSlidingWindow{
		capacity:    capacity,
		windowTicks: windowTicks,
	}, nil
}

// TryAcquire attempts to admit units at tick.
func (a *ApproximateSlidingWindow) TryAcquire(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !a.mu.TryLock() {
		return ErrContention
	}
	defer a.mu.Unlock()

	if tick < max(a.windowStarts[0], a.windowStarts[1]) {
		return ErrExpiredTick
	}
	if units > a.capacity {
		// Permanently impossible; folded into the generic code on this
		// path. The explicit check also keeps the saturated weighted
		// comparison below from admitting an oversized request when
		// capacity*windowTicks clamps at the integer ceiling.
		return ErrInsufficientCapacity
	}
	a.advance(tick)

	total := a.weightedTotal(tick)
	capContrib := satMul(a.capacity, a.windowTicks)
	reqContrib := satMul(units, a.windowTicks)
	if total > satSub(capContrib, reqContrib) {
		return ErrInsufficientCapacity
	}
	a.windows[a.current] = satAdd(a.windows[a.current], units)
	return nil
}

// TryAcquireVerbose is TryAcquire with diagnostic error payloads.
func (a *ApproximateSlidingWindow) TryAcquireVerbose(tick, units Uint) error {
	if units == 0 {
		return nil
	}
	if !a.mu.TryLock() {
		return ErrContention
	}
	defer a.mu.Unlock()

	if m := max(a.windowStarts[0], a.windowStarts[1]); tick < m {
		return &ExpiredTickError{MinAcceptableTick: m}
	}
	if units > a.capacity {
		return &BeyondCapacityError{Acquiring: units, Capacity: a.capacity}
	}
	a.advance(tick)

	total := a.weightedTotal(tick)
	capContrib := satMul(a.capacity, a.windowTicks)
	reqContrib := satMul(units, a.windowTicks)
	if total <= satSub(capContrib, reqContrib) {
		a.windows[a.current] = satAdd(a.windows[a.current], units)
		return nil
	}

	// Two decay paths can free weight: the active window's own weight stops
	// counting once a new period begins, or the inactive window's overlap
	// shrinks tick by tick. Branch on which alone suffices; the result is a
	// heuristic estimate that grows with the deficit, not a tight bound.
	availableContrib := satSub(capContrib, total)
	activeContrib := satMul(a.windows[a.current], a.windowTicks)
	var retry Uint
	if reqContrib > satSub(capContrib, activeContrib) {
		retry = satSub(reqContrib, satSub(capContrib, activeContrib))
	} else {
		retry = satSub(reqContrib, availableContrib)
	}
	return &InsufficientCapacityError{
		Acquiring:       units,
		Available:       availableContrib / a.windowTicks,
		RetryAfterTicks: retry,
	}
}

// CapacityRemaining reports the units still admissible at tick.
func (a *ApproximateSlidingWindow) CapacityRemaining(tick Uint) (Uint, error) {
	if !a.mu.TryLock() {
		return 0, ErrContention
	}
	defer a.mu.Unlock()

	if tick < max(a.windowStarts[0], a.windowStarts[1]) {
		return 0, ErrExpiredTick
	}
	a.advance(tick)

	remaining := satSub(satMul(a.capacity, a.windowTicks), a.weightedTotal(tick))
	return remaining / a.windowTicks, nil
}

// CapacityRemainingOrZero is CapacityRemaining with failures reported as 0.
func (a *ApproximateSlidingWindow) CapacityRemainingOrZero(tick Uint) Uint {
	remaining, err := a.CapacityRemaining(tick)
	if err != nil {
		return 0
	}
	return remaining
}

// advance moves the active slot to the window owning tick, resetting and
// re-stamping it on a period change. When the inactive slot's start lags
// the new start by more than one full window it can no longer overlap the
// sliding view and is force-reset so a stale count never contributes.
// Callers hold a.mu.
func (a *ApproximateSlidingWindow) advance(tick Uint) {
	idx := int((tick / a.windowTicks) % 2)
	start := tick / a.windowTicks * a.windowTicks
	if idx == a.current && a.windowStarts[idx] == start {
		return
	}
	a.current = idx
	if a.windowStarts[idx] != start {
		a.windows[idx] = 0
		a.windowStarts[idx] = start
		other := idx ^ 1
		if start > satAdd(a.windowStarts[other], a.windowTicks) {
			a.windows[other] = 0
			a.windowStarts[other] = start
		}
	}
}

// weightedTotal returns the tick-weighted usage visible in the sliding
// window ending at tick: the active window at full weight plus the inactive
// window scaled by its overlap with the view. Callers hold a.mu.
func (a *ApproximateSlidingWindow) weightedTotal(tick Uint) Uint {
	head := satSub(tick, a.windowTicks-1)
	cur := a.current
	other := cur ^ 1

	total := satMul(a.windows[cur], a.windowTicks)

	otherStart := a.windowStarts[other]
	otherEnd := satAdd(otherStart, a.windowTicks-1)
	if head > otherEnd {
		return total
	}
	overlapStart := max(head, otherStart)
	overlapEnd := min(tick, otherEnd)
	if overlapStart > overlapEnd {
		return total
	}
	overlap := satAdd(overlapEnd-overlapStart, 1)
	return satAdd(total, satMul(a.windows[other], overlap))
}

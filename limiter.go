package ratelimit

// Limiter is the contract shared by all five engines. Implementations must
// be safe for concurrent use; every operation performs its whole
// read-decide-mutate sequence under one non-blocking lock attempt and
// returns immediately, reporting contention as ErrContention rather than
// waiting.
//
// Ticks are caller-supplied monotonic integers. Feeding a tick older than
// the engine's retained state yields ErrExpiredTick. Acquiring zero units
// always succeeds and never mutates state, which makes
// TryAcquire(tick, 0) a safe probe alongside CapacityRemaining.
type Limiter interface {
	// TryAcquire attempts to admit units at tick. On refusal it returns one
	// of the sentinel errors; requests larger than the configured capacity
	// fold into ErrInsufficientCapacity on this path.
	TryAcquire(tick, units Uint) error

	// TryAcquireVerbose behaves like TryAcquire but returns typed errors
	// carrying diagnostics: *InsufficientCapacityError (with a retry
	// estimate), *BeyondCapacityError, or *ExpiredTickError. Contention is
	// still the bare ErrContention.
	TryAcquireVerbose(tick, units Uint) error

	// CapacityRemaining reports how many units could still be admitted at
	// tick, applying any pending decay first. It can fail with
	// ErrContention or ErrExpiredTick.
	CapacityRemaining(tick Uint) (Uint, error)

	// CapacityRemainingOrZero is CapacityRemaining with failures collapsed
	// to zero, for callers that only need a pessimistic reading.
	CapacityRemainingOrZero(tick Uint) Uint
}

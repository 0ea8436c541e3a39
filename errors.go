package ratelimit

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the fast path. The verbose path returns typed
// errors that unwrap to these, so errors.Is works uniformly across both.
var (
	// ErrInsufficientCapacity means the request cannot be admitted right
	// now. Capacity frees up as the engine decays, so a later retry with
	// the same arguments may succeed.
	ErrInsufficientCapacity = errors.New("ratelimit: insufficient capacity")

	// ErrBeyondCapacity means the request asks for more units than the
	// limiter can ever hold. It will never succeed; callers must not retry.
	ErrBeyondCapacity = errors.New("ratelimit: request exceeds configured capacity")

	// ErrExpiredTick means the supplied tick is older than the minimum the
	// engine's stored state is still consistent with. This is a caller
	// monotonicity bug, not a capacity statement.
	ErrExpiredTick = errors.New("ratelimit: tick is older than retained state")

	// ErrContention means the single non-blocking lock attempt failed
	// because another operation held the lock. Transient; retry policy is
	// up to the caller.
	ErrContention = errors.New("ratelimit: state is locked by another operation")
)

// InsufficientCapacityError is the verbose form of ErrInsufficientCapacity.
// RetryAfterTicks is an estimate derived from the engine's own decay model,
// not a guarantee: concurrent acquirers may consume freed capacity first.
type InsufficientCapacityError struct {
	Acquiring       Uint
	Available       Uint
	RetryAfterTicks Uint
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("ratelimit: insufficient capacity: acquiring %d, available %d, retry after %d tick(s)",
		e.Acquiring, e.Available, e.RetryAfterTicks)
}

func (e *InsufficientCapacityError) Unwrap() error { return ErrInsufficientCapacity }

// BeyondCapacityError is the verbose form of ErrBeyondCapacity.
type BeyondCapacityError struct {
	Acquiring Uint
	Capacity  Uint
}

func (e *BeyondCapacityError) Error() string {
	return fmt.Sprintf("ratelimit: acquiring %d exceeds capacity %d; this request can never succeed",
		e.Acquiring, e.Capacity)
}

func (e *BeyondCapacityError) Unwrap() error { return ErrBeyondCapacity }

// ExpiredTickError is the verbose form of ErrExpiredTick.
// MinAcceptableTick is the smallest tick the engine still accepts.
type ExpiredTickError struct {
	MinAcceptableTick Uint
}

func (e *ExpiredTickError) Error() string {
	return fmt.Sprintf("ratelimit: expired tick: minimum acceptable tick is %d", e.MinAcceptableTick)
}

func (e *ExpiredTickError) Unwrap() error { return ErrExpiredTick }

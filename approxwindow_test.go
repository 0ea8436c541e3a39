package ratelimit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApproximateSlidingWindow_Validation(t *testing.T) {
	_, err := NewApproximateSlidingWindow(0, 5)
	assert.Error(t, err)
	_, err = NewApproximateSlidingWindow(10, 0)
	assert.Error(t, err)
	_, err = NewApproximateSlidingWindow(10, 5)
	assert.NoError(t, err)
}

func TestApproximateSlidingWindow_FillsWithinOneWindow(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(0, 3))
	require.NoError(t, a.TryAcquire(0, 7))
	assert.ErrorIs(t, a.TryAcquire(0, 1), ErrInsufficientCapacity)
}

func TestApproximateSlidingWindow_WeightedCarryOver(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(4, 3))
	// At tick 7 the previous window overlaps the view for 2 of its 5
	// ticks, so the 3 old units weigh 6 of the 25 they would fresh.
	require.NoError(t, a.TryAcquire(7, 5))
	assert.ErrorIs(t, a.TryAcquire(7, 5), ErrInsufficientCapacity)
}

func TestApproximateSlidingWindow_InterpolatedRemaining(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(4, 10))
	// Weighted usage at tick 7 is 10*2 of the 10*5 budget.
	assert.Equal(t, Uint(6), a.CapacityRemainingOrZero(7))
}

func TestApproximateSlidingWindow_ApproximationAccuracy(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 10)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(9, 10))
	// At tick 15 the old burst still weighs 10*4 of the 100 budget,
	// leaving room for exactly 6 more.
	require.NoError(t, a.TryAcquire(15, 6))
	assert.ErrorIs(t, a.TryAcquire(15, 1), ErrInsufficientCapacity)
}

func TestApproximateSlidingWindow_BoundaryWeights(t *testing.T) {
	a, err := NewApproximateSlidingWindow(20, 10)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(5, 8))
	require.NoError(t, a.TryAcquire(10, 10))
	require.NoError(t, a.TryAcquire(15, 2))
	assert.ErrorIs(t, a.TryAcquire(15, 8), ErrInsufficientCapacity)
}

func TestApproximateSlidingWindow_StaleWindowNeverContributes(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(5, 3))
	// Two full periods later the old count must not bleed into the new
	// view through slot reuse.
	require.NoError(t, a.TryAcquire(15, 7))
	require.NoError(t, a.TryAcquire(15, 3))
}

func TestApproximateSlidingWindow_LargeGapResets(t *testing.T) {
	a, err := NewApproximateSlidingWindow(100, 10)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(5, 50))
	require.NoError(t, a.TryAcquire(1000, 50))
	assert.Equal(t, Uint(50), a.CapacityRemainingOrZero(1005))
}

func TestApproximateSlidingWindow_SameWindowAccumulates(t *testing.T) {
	a, err := NewApproximateSlidingWindow(100, 20)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(5, 30))
	require.NoError(t, a.TryAcquire(10, 30))
	assert.ErrorIs(t, a.TryAcquire(15, 41), ErrInsufficientCapacity)
	require.NoError(t, a.TryAcquire(15, 40))
}

func TestApproximateSlidingWindow_ExpiredTick(t *testing.T) {
	a, err := NewApproximateSlidingWindow(100, 10)
	require.NoError(t, err)

	require.NoError(t, a.TryAcquire(5, 10))
	require.NoError(t, a.TryAcquire(15, 10))
	require.NoError(t, a.TryAcquire(25, 10))

	// The active window now starts at 20.
	assert.ErrorIs(t, a.TryAcquire(19, 10), ErrExpiredTick)
	assert.ErrorIs(t, a.TryAcquire(15, 10), ErrExpiredTick)
	assert.ErrorIs(t, a.TryAcquire(10, 10), ErrExpiredTick)
	require.NoError(t, a.TryAcquire(20, 10))
	require.NoError(t, a.TryAcquire(25, 10))
	require.NoError(t, a.TryAcquire(35, 10))
	assert.ErrorIs(t, a.TryAcquire(29, 10), ErrExpiredTick)

	var expired *ExpiredTickError
	err = a.TryAcquireVerbose(29, 10)
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, Uint(30), expired.MinAcceptableTick)
}

func TestApproximateSlidingWindow_BeyondCapacity(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)

	assert.ErrorIs(t, a.TryAcquire(0, 15), ErrInsufficientCapacity)

	var beyond *BeyondCapacityError
	err = a.TryAcquireVerbose(0, 15)
	require.True(t, errors.As(err, &beyond))
	assert.Equal(t, Uint(15), beyond.Acquiring)
	assert.Equal(t, Uint(10), beyond.Capacity)
	assert.Equal(t, Uint(10), a.CapacityRemainingOrZero(0))
}

func TestApproximateSlidingWindow_VerboseRetryAfter(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)
	require.NoError(t, a.TryAcquire(0, 10))

	// The full burst sits in the active window, so nothing frees up
	// before the next period begins.
	var insufficient *InsufficientCapacityError
	err = a.TryAcquireVerbose(0, 1)
	require.ErrorIs(t, err, ErrInsufficientCapacity)
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, Uint(1), insufficient.Acquiring)
	assert.Equal(t, Uint(0), insufficient.Available)
	assert.Equal(t, Uint(5), insufficient.RetryAfterTicks)

	require.NoError(t, a.TryAcquireVerbose(0+insufficient.RetryAfterTicks, 1))
}

func TestApproximateSlidingWindow_ZeroUnits(t *testing.T) {
	a, err := NewApproximateSlidingWindow(10, 5)
	require.NoError(t, err)
	require.NoError(t, a.TryAcquire(2, 4))
	require.NoError(t, a.TryAcquire(0, 0))
	require.NoError(t, a.TryAcquireVerbose(0, 0))
	assert.Equal(t, Uint(6), a.CapacityRemainingOrZero(2))
}

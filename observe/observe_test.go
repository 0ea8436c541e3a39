package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickguard/ratelimit"
)

// gatherOutcomes collects outcome label -> summed count from the decision
// counter family, ignoring exporter-added labels and name suffixes.
func gatherOutcomes(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	var families []*dto.MetricFamily
	families, err := reg.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}
	for _, family := range families {
		if !strings.Contains(family.GetName(), "ratelimit_decisions") {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" {
					outcomes[label.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return outcomes
}

func newInstrumented(t *testing.T) (ratelimit.Limiter, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	provider, err := Setup(reg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	inner, err := ratelimit.NewTokenBucket(10, 10, 1)
	require.NoError(t, err)
	limiter, err := Instrument("api", inner, provider.Meter("observe_test"))
	require.NoError(t, err)
	return limiter, reg
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	limiter, reg := newInstrumented(t)

	require.NoError(t, limiter.TryAcquire(0, 4))
	require.NoError(t, limiter.TryAcquire(0, 6))
	assert.ErrorIs(t, limiter.TryAcquire(0, 1), ratelimit.ErrInsufficientCapacity)
	assert.ErrorIs(t, limiter.TryAcquireVerbose(0, 11), ratelimit.ErrBeyondCapacity)

	outcomes := gatherOutcomes(t, reg)
	assert.Equal(t, float64(2), outcomes["allowed"])
	assert.Equal(t, float64(1), outcomes["insufficient_capacity"])
	assert.Equal(t, float64(1), outcomes["beyond_capacity"])
}

func TestInstrument_CountsExpiredTicks(t *testing.T) {
	limiter, reg := newInstrumented(t)

	require.NoError(t, limiter.TryAcquire(25, 1))
	assert.ErrorIs(t, limiter.TryAcquire(5, 1), ratelimit.ErrExpiredTick)

	outcomes := gatherOutcomes(t, reg)
	assert.Equal(t, float64(1), outcomes["allowed"])
	assert.Equal(t, float64(1), outcomes["expired_tick"])
}

func TestInstrument_RecordsRemainingCapacity(t *testing.T) {
	limiter, reg := newInstrumented(t)

	require.NoError(t, limiter.TryAcquire(0, 4))
	assert.Equal(t, ratelimit.Uint(6), limiter.CapacityRemainingOrZero(0))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, family := range families {
		if !strings.Contains(family.GetName(), "ratelimit_capacity_remaining") {
			continue
		}
		for _, m := range family.GetMetric() {
			found = true
			assert.Equal(t, float64(6), m.GetGauge().GetValue())
		}
	}
	assert.True(t, found, "capacity gauge was not exported")
}

func TestInstrument_PassesErrorsThrough(t *testing.T) {
	limiter, _ := newInstrumented(t)

	require.NoError(t, limiter.TryAcquireVerbose(0, 10))
	err := limiter.TryAcquireVerbose(0, 3)
	// The wrapper must hand back the engine's error untouched, verbose
	// payload included.
	var insufficient *ratelimit.InsufficientCapacityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, ratelimit.Uint(3), insufficient.Acquiring)
	assert.Equal(t, ratelimit.Uint(0), insufficient.Available)

	remaining, err := limiter.CapacityRemaining(0)
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Uint(0), remaining)
}

func TestOutcomeMapping(t *testing.T) {
	assert.Equal(t, "allowed", outcome(nil))
	assert.Equal(t, "insufficient_capacity", outcome(ratelimit.ErrInsufficientCapacity))
	assert.Equal(t, "beyond_capacity", outcome(&ratelimit.BeyondCapacityError{Acquiring: 2, Capacity: 1}))
	assert.Equal(t, "expired_tick", outcome(&ratelimit.ExpiredTickError{MinAcceptableTick: 5}))
	assert.Equal(t, "contention", outcome(ratelimit.ErrContention))
	assert.Equal(t, "error", outcome(context.Canceled))
}

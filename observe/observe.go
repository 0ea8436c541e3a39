// Package observe provides opt-in OpenTelemetry instrumentation for
// ratelimit engines, exported through Prometheus. The core limiters never
// record anything themselves; wrap one with Instrument to count admission
// outcomes and track remaining capacity.
package observe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/tickguard/ratelimit"
)

// Provider holds the meter provider for graceful shutdown.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
}

// Setup builds a MeterProvider whose metrics are exported through the given
// Prometheus registerer. A nil registerer uses the Prometheus default.
// The returned Provider must be shut down on application exit.
func Setup(reg prometheus.Registerer) (*Provider, error) {
	opts := []otelprom.Option{}
	if reg != nil {
		opts = append(opts, otelprom.WithRegisterer(reg))
	}
	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &Provider{meterProvider: mp}, nil
}

// Meter returns a meter from the provider, suitable for Instrument.
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}

// instrumented decorates a Limiter with outcome counting. Errors pass
// through untouched.
type instrumented struct {
	next      ratelimit.Limiter
	attrs     attribute.Set
	decisions metric.Int64Counter
	remaining metric.Int64Gauge
}

// Instrument wraps next so every operation increments a decision counter
// labelled by outcome, and successful capacity queries record the remaining
// units. The name labels all series from this limiter.
func Instrument(name string, next ratelimit.Limiter, meter metric.Meter) (ratelimit.Limiter, error) {
	decisions, err := meter.Int64Counter("ratelimit.decisions",
		metric.WithDescription("Admission decisions, partitioned by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}
	remaining, err := meter.Int64Gauge("ratelimit.capacity_remaining",
		metric.WithDescription("Units still admissible at the last queried tick."),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create capacity gauge: %w", err)
	}
	return &instrumented{
		next:      next,
		attrs:     attribute.NewSet(attribute.String("limiter", name)),
		decisions: decisions,
		remaining: remaining,
	}, nil
}

func (i *instrumented) TryAcquire(tick, units ratelimit.Uint) error {
	err := i.next.TryAcquire(tick, units)
	i.record(err)
	return err
}

func (i *instrumented) TryAcquireVerbose(tick, units ratelimit.Uint) error {
	err := i.next.TryAcquireVerbose(tick, units)
	i.record(err)
	return err
}

func (i *instrumented) CapacityRemaining(tick ratelimit.Uint) (ratelimit.Uint, error) {
	remaining, err := i.next.CapacityRemaining(tick)
	if err == nil {
		i.remaining.Record(context.Background(), clampInt64(remaining),
			metric.WithAttributeSet(i.attrs))
	}
	return remaining, err
}

func (i *instrumented) CapacityRemainingOrZero(tick ratelimit.Uint) ratelimit.Uint {
	remaining := i.next.CapacityRemainingOrZero(tick)
	i.remaining.Record(context.Background(), clampInt64(remaining),
		metric.WithAttributeSet(i.attrs))
	return remaining
}

// record counts one decision under its outcome label.
func (i *instrumented) record(err error) {
	i.decisions.Add(context.Background(), 1,
		metric.WithAttributeSet(i.attrs),
		metric.WithAttributes(attribute.String("outcome", outcome(err))),
	)
}

// outcome maps an operation result onto a stable label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "allowed"
	case errors.Is(err, ratelimit.ErrBeyondCapacity):
		return "beyond_capacity"
	case errors.Is(err, ratelimit.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, ratelimit.ErrExpiredTick):
		return "expired_tick"
	case errors.Is(err, ratelimit.ErrContention):
		return "contention"
	default:
		return "error"
	}
}

// clampInt64 narrows a Uint for the int64-valued gauge.
func clampInt64(v ratelimit.Uint) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

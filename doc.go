// Package ratelimit provides tick-based, non-blocking rate-limiting engines
// for admission control in front of shared resources (API endpoints, queues,
// connection pools, downstream services).
//
// Time is an abstract monotonic integer tick supplied by the caller; the
// package never reads a system clock. Five independent engines share one
// contract (the Limiter interface): FixedWindowCounter, LeakyBucket,
// TokenBucket, SlidingWindowCounter, and ApproximateSlidingWindow. Every
// operation decides immediately under a single non-blocking lock attempt;
// contention is reported as ErrContention, never waited out.
//
// All arithmetic over ticks and units saturates rather than wrapping, so
// extreme configurations (capacity or rate at the maximum of Uint) stay
// well defined.
//
// Subpackages supply the optional layers a deployment usually wants on top
// of the core: keyed maintains per-key engine instances with LRU eviction,
// and observe adds OpenTelemetry/Prometheus instrumentation. The core never
// logs and never records metrics on its own.
package ratelimit

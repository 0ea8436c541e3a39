// Package keyed maintains one rate-limiting engine per key (user, API key,
// client IP) on top of the core ratelimit package. A Registry creates
// engines on first use from an injected factory and bounds its memory with
// LRU eviction; there is no background sweeper, so state only changes
// inside the calls that touch it, matching the core's model.
package keyed

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tickguard/ratelimit"
)

// Factory builds a fresh limiter for a key that is seen for the first time
// (or seen again after eviction).
type Factory func() (ratelimit.Limiter, error)

// Registry is a per-key front over the core limiters. The registry lookup
// itself uses a short blocking lock; each key's engine keeps the core's
// non-blocking contention contract because delegation happens outside the
// registry lock.
type Registry struct {
	factory    Factory
	maxEntries int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

// element payload for the LRU list.
type entry struct {
	key     string
	limiter ratelimit.Limiter
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for eviction debug lines. By default the
// registry stays silent.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a Registry that builds engines with factory and retains at
// most maxEntries keys, evicting the least recently used beyond that.
func New(factory Factory, maxEntries int, opts ...Option) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("keyed: factory must not be nil")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("keyed: maxEntries must be > 0, got %d", maxEntries)
	}
	r := &Registry{
		factory:    factory,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// TryAcquire delegates to the key's engine, creating it if needed.
func (r *Registry) TryAcquire(key string, tick, units ratelimit.Uint) error {
	limiter, err := r.limiterFor(key)
	if err != nil {
		return err
	}
	return limiter.TryAcquire(tick, units)
}

// TryAcquireVerbose delegates to the key's engine, creating it if needed.
func (r *Registry) TryAcquireVerbose(key string, tick, units ratelimit.Uint) error {
	limiter, err := r.limiterFor(key)
	if err != nil {
		return err
	}
	return limiter.TryAcquireVerbose(tick, units)
}

// CapacityRemaining delegates to the key's engine, creating it if needed.
func (r *Registry) CapacityRemaining(key string, tick ratelimit.Uint) (ratelimit.Uint, error) {
	limiter, err := r.limiterFor(key)
	if err != nil {
		return 0, err
	}
	return limiter.CapacityRemaining(tick)
}

// CapacityRemainingOrZero delegates to the key's engine; registry failures
// also collapse to zero.
func (r *Registry) CapacityRemainingOrZero(key string, tick ratelimit.Uint) ratelimit.Uint {
	limiter, err := r.limiterFor(key)
	if err != nil {
		return 0
	}
	return limiter.CapacityRemainingOrZero(tick)
}

// Len reports how many keys currently hold an engine.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// limiterFor returns the engine for key, creating and inserting one when
// absent and evicting the least recently used entry on overflow.
func (r *Registry) limiterFor(key string) (ratelimit.Limiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.entries[key]; ok {
		r.order.MoveToFront(el)
		return el.Value.(*entry).limiter, nil
	}

	limiter, err := r.factory()
	if err != nil {
		return nil, fmt.Errorf("keyed: create limiter for key %q: %w", key, err)
	}
	r.entries[key] = r.order.PushFront(&entry{key: key, limiter: limiter})

	if len(r.entries) > r.maxEntries {
		oldest := r.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*entry)
			r.order.Remove(oldest)
			delete(r.entries, evicted.key)
			if r.logger != nil {
				r.logger.Debug("evicted least recently used limiter", "key", evicted.key)
			}
		}
	}
	return limiter, nil
}

package ratelimit

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Algorithm names accepted by Config.
const (
	AlgorithmFixedWindowCounter       = "fixed_window_counter"
	AlgorithmLeakyBucket              = "leaky_bucket"
	AlgorithmTokenBucket              = "token_bucket"
	AlgorithmSlidingWindowCounter     = "sliding_window_counter"
	AlgorithmApproximateSlidingWindow = "approximate_sliding_window"
)

// FixedWindowCounterConfig mirrors NewFixedWindowCounter's parameters.
type FixedWindowCounterConfig struct {
	Capacity    Uint `yaml:"capacity" json:"capacity"`
	WindowTicks Uint `yaml:"window_ticks" json:"window_ticks"`
}

// New converts the config into a validated limiter, identically to calling
// the constructor directly.
func (c FixedWindowCounterConfig) New() (*FixedWindowCounter, error) {
	return NewFixedWindowCounter(c.Capacity, c.WindowTicks)
}

// LeakyBucketConfig mirrors NewLeakyBucket's parameters.
type LeakyBucketConfig struct {
	Capacity     Uint `yaml:"capacity" json:"capacity"`
	LeakInterval Uint `yaml:"leak_interval" json:"leak_interval"`
	LeakAmount   Uint `yaml:"leak_amount" json:"leak_amount"`
}

// New converts the config into a validated limiter.
func (c LeakyBucketConfig) New() (*LeakyBucket, error) {
	return NewLeakyBucket(c.Capacity, c.LeakInterval, c.LeakAmount)
}

// TokenBucketConfig mirrors NewTokenBucket's parameters.
type TokenBucketConfig struct {
	Capacity       Uint `yaml:"capacity" json:"capacity"`
	RefillInterval Uint `yaml:"refill_interval" json:"refill_interval"`
	RefillAmount   Uint `yaml:"refill_amount" json:"refill_amount"`
}

// New converts the config into a validated limiter.
func (c TokenBucketConfig) New() (*TokenBucket, error) {
	return NewTokenBucket(c.Capacity, c.RefillInterval, c.RefillAmount)
}

// SlidingWindowCounterConfig mirrors NewSlidingWindowCounter's parameters.
type SlidingWindowCounterConfig struct {
	Capacity    Uint `yaml:"capacity" json:"capacity"`
	BucketTicks Uint `yaml:"bucket_ticks" json:"bucket_ticks"`
	BucketCount Uint `yaml:"bucket_count" json:"bucket_count"`
}

// New converts the config into a validated limiter.
func (c SlidingWindowCounterConfig) New() (*SlidingWindowCounter, error) {
	return NewSlidingWindowCounter(c.Capacity, c.BucketTicks, c.BucketCount)
}

// ApproximateSlidingWindowConfig mirrors NewApproximateSlidingWindow's
// parameters.
type ApproximateSlidingWindowConfig struct {
	Capacity    Uint `yaml:"capacity" json:"capacity"`
	WindowTicks Uint `yaml:"window_ticks" json:"window_ticks"`
}

// New converts the config into a validated limiter.
func (c ApproximateSlidingWindowConfig) New() (*ApproximateSlidingWindow, error) {
	return NewApproximateSlidingWindow(c.Capacity, c.WindowTicks)
}

// Config selects an engine by name and carries the union of all engine
// parameters; only the fields the chosen algorithm uses are consulted. It
// is the YAML-facing shape for deployments that pick the algorithm at
// runtime rather than at compile time.
type Config struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	Capacity       Uint `yaml:"capacity" json:"capacity"`
	WindowTicks    Uint `yaml:"window_ticks,omitempty" json:"window_ticks,omitempty"`
	LeakInterval   Uint `yaml:"leak_interval,omitempty" json:"leak_interval,omitempty"`
	LeakAmount     Uint `yaml:"leak_amount,omitempty" json:"leak_amount,omitempty"`
	RefillInterval Uint `yaml:"refill_interval,omitempty" json:"refill_interval,omitempty"`
	RefillAmount   Uint `yaml:"refill_amount,omitempty" json:"refill_amount,omitempty"`
	BucketTicks    Uint `yaml:"bucket_ticks,omitempty" json:"bucket_ticks,omitempty"`
	BucketCount    Uint `yaml:"bucket_count,omitempty" json:"bucket_count,omitempty"`
}

// Validate checks that the algorithm is known and that the fields it needs
// are non-zero. It reports the first problem found.
func (c Config) Validate() error {
	if c.Capacity == 0 {
		return fmt.Errorf("capacity must be > 0")
	}
	switch c.Algorithm {
	case AlgorithmFixedWindowCounter, AlgorithmApproximateSlidingWindow:
		if c.WindowTicks == 0 {
			return fmt.Errorf("%s requires window_ticks > 0", c.Algorithm)
		}
	case AlgorithmLeakyBucket:
		if c.LeakInterval == 0 || c.LeakAmount == 0 {
			return fmt.Errorf("%s requires leak_interval and leak_amount > 0", c.Algorithm)
		}
	case AlgorithmTokenBucket:
		if c.RefillInterval == 0 || c.RefillAmount == 0 {
			return fmt.Errorf("%s requires refill_interval and refill_amount > 0", c.Algorithm)
		}
	case AlgorithmSlidingWindowCounter:
		if c.BucketTicks == 0 || c.BucketCount == 0 {
			return fmt.Errorf("%s requires bucket_ticks and bucket_count > 0", c.Algorithm)
		}
	case "":
		return fmt.Errorf("algorithm is required")
	default:
		return fmt.Errorf("unsupported algorithm: %s", c.Algorithm)
	}
	return nil
}

// Build instantiates the configured engine. The result passes through the
// same constructor validation as direct construction.
func (c Config) Build() (Limiter, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}
	switch c.Algorithm {
	case AlgorithmFixedWindowCounter:
		return FixedWindowCounterConfig{Capacity: c.Capacity, WindowTicks: c.WindowTicks}.New()
	case AlgorithmLeakyBucket:
		return LeakyBucketConfig{Capacity: c.Capacity, LeakInterval: c.LeakInterval, LeakAmount: c.LeakAmount}.New()
	case AlgorithmTokenBucket:
		return TokenBucketConfig{Capacity: c.Capacity, RefillInterval: c.RefillInterval, RefillAmount: c.RefillAmount}.New()
	case AlgorithmSlidingWindowCounter:
		return SlidingWindowCounterConfig{Capacity: c.Capacity, BucketTicks: c.BucketTicks, BucketCount: c.BucketCount}.New()
	case AlgorithmApproximateSlidingWindow:
		return ApproximateSlidingWindowConfig{Capacity: c.Capacity, WindowTicks: c.WindowTicks}.New()
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", c.Algorithm)
	}
}

// LoadConfig reads a YAML limiter configuration from path and validates it.
// Parameters set for an algorithm other than the configured one are ignored
// by Build; LoadConfig logs a warning for each so stale operator configs
// get noticed.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read limiter config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse limiter config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid limiter config: %w", err)
	}
	warnUnusedKeys(cfg)
	return cfg, nil
}

// warnUnusedKeys logs a warning for each rate parameter that the configured
// algorithm does not consult.
func warnUnusedKeys(cfg Config) {
	used := map[string][]string{
		AlgorithmFixedWindowCounter:       {"window_ticks"},
		AlgorithmLeakyBucket:              {"leak_interval", "leak_amount"},
		AlgorithmTokenBucket:              {"refill_interval", "refill_amount"},
		AlgorithmSlidingWindowCounter:     {"bucket_ticks", "bucket_count"},
		AlgorithmApproximateSlidingWindow: {"window_ticks"},
	}[cfg.Algorithm]

	set := map[string]Uint{
		"window_ticks":    cfg.WindowTicks,
		"leak_interval":   cfg.LeakInterval,
		"leak_amount":     cfg.LeakAmount,
		"refill_interval": cfg.RefillInterval,
		"refill_amount":   cfg.RefillAmount,
		"bucket_ticks":    cfg.BucketTicks,
		"bucket_count":    cfg.BucketCount,
	}
	for _, key := range used {
		delete(set, key)
	}
	for key, value := range set {
		if value != 0 {
			slog.Warn("Config key is not used by the configured algorithm and will be ignored.",
				"config_key", key,
				"algorithm", cfg.Algorithm,
			)
		}
	}
}

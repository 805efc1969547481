package limiter

import "time"

// settings collects everything the functional options can adjust. Each
// constructor reads the fields that apply to it and ignores the rest.
type settings struct {
	recorder MetricsRecorder
	hasher   Hasher
	prefix   string
	timeout  time.Duration
}

func defaultSettings() settings {
	return settings{
		recorder: &NoOpMetricsRecorder{},
		hasher:   xxhashLanes,
		prefix:   "limiter:",
		timeout:  5 * time.Second,
	}
}

// Option configures a limiter at construction time.
type Option func(*settings)

// WithRecorder injects a metrics backend. The default recorder discards
// everything.
func WithRecorder(r MetricsRecorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithHasher replaces the hash collaborator of a Sketch. The default slices
// xxhash digests into 32-bit lanes; tests use this hook to force collisions.
func WithHasher(h Hasher) Option {
	return func(s *settings) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithPrefix sets the Redis key prefix (default "limiter:"). Only
// RedisLimiter reads it.
func WithPrefix(prefix string) Option {
	return func(s *settings) { s.prefix = prefix }
}

// WithTimeout sets the per-call context timeout for Redis operations
// (default 5s). Only RedisLimiter reads it.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

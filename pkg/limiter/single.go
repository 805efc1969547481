package limiter

import (
	"sync"
	"time"
)

// Limiter is a single leaky bucket guarding one resource. For per-identity
// limiting use KeyedLimiter (exact, memory grows with key count) or Sketch
// (approximate, fixed memory).
//
// It is safe for concurrent use; the decay and admission of one check run
// as a single critical section under the internal mutex.
type Limiter struct {
	mu       sync.Mutex
	limit    Limit
	state    bucket
	recorder MetricsRecorder
}

// NewLimiter constructs a Limiter with an empty bucket.
func NewLimiter(limit Limit, opts ...Option) *Limiter {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Limiter{limit: limit, recorder: s.recorder}
}

// Allow reports whether one unit is admitted at ts.
func (l *Limiter) Allow(ts time.Time) (bool, error) {
	return l.AllowN(ts, 1)
}

// AllowN reports whether count units are admitted at ts, all or nothing.
// Count may be fractional. Timestamps must be non-decreasing across calls;
// an earlier timestamp returns ErrTimestampOutOfOrder and leaves the bucket
// untouched.
func (l *Limiter) AllowN(ts time.Time, count float64) (bool, error) {
	if count < 0 {
		return false, ErrInvalidCount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.state.decay(l.limit, ts.UnixMicro()); err != nil {
		return false, err
	}
	ok := l.state.admit(l.limit, count, 0)
	l.record(ok)
	return ok, nil
}

// Level returns the bucket's fill level decayed to ts.
func (l *Limiter) Level(ts time.Time) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.decay(l.limit, ts.UnixMicro())
}

func (l *Limiter) record(allowed bool) {
	if allowed {
		l.recorder.Add(MetricAllowed, 1, nil)
	} else {
		l.recorder.Add(MetricDenied, 1, nil)
	}
}

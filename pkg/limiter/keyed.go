package limiter

import (
	"sync"
	"time"
)

// KeyedLimiter applies one Limit independently to every key. Buckets are
// created lazily on first check and reclaimed in two ways: opportunistically,
// when a check observes a fully drained bucket (see AllowN), and in bulk via
// Sweep.
//
// It is safe for concurrent use by multiple goroutines (it uses a mutex to
// protect the map and per-key state). State is local to the process; use
// RedisLimiter when a single global budget must hold across replicas.
type KeyedLimiter struct {
	mu       sync.Mutex
	limit    Limit
	buckets  map[string]*bucket
	recorder MetricsRecorder
}

// NewKeyedLimiter constructs a KeyedLimiter with empty state.
func NewKeyedLimiter(limit Limit, opts ...Option) *KeyedLimiter {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &KeyedLimiter{
		limit:    limit,
		buckets:  make(map[string]*bucket),
		recorder: s.recorder,
	}
}

// Allow reports whether one unit is admitted for key at ts.
func (k *KeyedLimiter) Allow(key string, ts time.Time) (bool, error) {
	return k.AllowN(key, ts, 1)
}

// AllowN reports whether count units are admitted for key at ts, all or
// nothing.
//
// A check that decays an existing bucket to exactly 0 while asking for
// exactly 1 unit deletes the bucket and succeeds immediately: a drained
// bucket receiving the smallest possible request is indistinguishable from
// no bucket at all, so the entry is reclaimed instead of re-recorded. This
// relieves memory pressure from long-tail keys during normal traffic; keys
// that only ever arrive with larger counts need Sweep instead.
//
// Timestamps must be non-decreasing per key.
func (k *KeyedLimiter) AllowN(key string, ts time.Time, count float64) (bool, error) {
	if count < 0 {
		return false, ErrInvalidCount
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	nowUS := ts.UnixMicro()
	b, exists := k.buckets[key]
	if !exists {
		b = &bucket{}
		// Insert only after decay succeeds so a rejected timestamp
		// leaves no trace of the key.
		if _, err := b.decay(k.limit, nowUS); err != nil {
			return false, err
		}
		k.buckets[key] = b
		ok := b.admit(k.limit, count, 0)
		k.record(ok)
		return ok, nil
	}

	level, err := b.decay(k.limit, nowUS)
	if err != nil {
		return false, err
	}
	if level == 0 && count == 1 {
		delete(k.buckets, key)
		k.recorder.Add(MetricEvicted, 1, nil)
		k.record(true)
		return true, nil
	}
	ok := b.admit(k.limit, count, 0)
	k.record(ok)
	return ok, nil
}

// Sweep decays every bucket to ts and deletes those that drain to exactly 0,
// returning how many were deleted. It runs in a single critical section and
// is linear in the number of live keys, so for large maps it can hold off
// concurrent checks noticeably; scheduling it is the caller's concern.
func (k *KeyedLimiter) Sweep(ts time.Time) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	nowUS := ts.UnixMicro()
	evicted := 0
	for key, b := range k.buckets {
		level, err := b.decay(k.limit, nowUS)
		if err != nil {
			return evicted, err
		}
		if level == 0 {
			delete(k.buckets, key)
			evicted++
		}
	}
	if evicted > 0 {
		k.recorder.Add(MetricEvicted, float64(evicted), nil)
	}
	return evicted, nil
}

// Len returns the number of live buckets.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

func (k *KeyedLimiter) record(allowed bool) {
	if allowed {
		k.recorder.Add(MetricAllowed, 1, nil)
	} else {
		k.recorder.Add(MetricDenied, 1, nil)
	}
}

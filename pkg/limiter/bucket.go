package limiter

import "math"

// bucket is the mutable accounting for one leaky bucket: the current fill
// level and the timestamp of the last check, in microseconds since the Unix
// epoch. The zero value is a never-touched bucket: level 0, last timestamp
// at the epoch, so the first decay against any realistic timestamp fully
// drains and the bucket behaves as brand-new.
type bucket struct {
	level  float64
	lastUS int64
}

// decay leaks the bucket forward to nowUS and returns the resulting level.
// A full window or more of elapsed time drains the bucket to exactly 0;
// shorter intervals subtract rate*elapsed, clamped at exactly 0 via max so
// floating error can never leave a small negative residue (the keyed map's
// eviction rule compares against 0 exactly). Zero elapsed time is a no-op,
// which makes decay idempotent for same-instant repeated checks.
//
// The bucket is left untouched when nowUS is behind lastUS; callers must
// present non-decreasing timestamps.
func (b *bucket) decay(l Limit, nowUS int64) (float64, error) {
	elapsed := nowUS - b.lastUS
	if elapsed < 0 {
		return b.level, ErrTimestampOutOfOrder
	}
	switch {
	case elapsed >= l.windowUS:
		b.level = 0
	case elapsed > 0:
		b.level = math.Max(b.level-l.rate*float64(elapsed), 0)
	}
	b.lastUS = nowUS
	return b.level, nil
}

// admit commits count units against the capacity, all or nothing. The
// effective level is max(stored level, floor); floor lets the sketch force
// a cell to commit at least the minimum observed across its sibling rows
// even when the cell's own stored level is staler and lower. On rejection
// the stored level is left unchanged.
func (b *bucket) admit(l Limit, count, floor float64) bool {
	level := math.Max(b.level, floor)
	if level+count > l.capacity {
		return false
	}
	b.level = level + count
	return true
}

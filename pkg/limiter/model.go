package limiter

import (
	"errors"
	"time"
)

// Configuration and caller-contract errors.
var (
	ErrInvalidCapacity = errors.New("capacity must be greater than 0")
	ErrInvalidWindow   = errors.New("window must be greater than 0")
	ErrInvalidRowCount = errors.New("rows must be between 1 and MaxRows")
	ErrInvalidColCount = errors.New("cols must be greater than 0")
	ErrInvalidCount    = errors.New("count must not be negative")

	// ErrTimestampOutOfOrder is returned when a check carries a timestamp
	// earlier than the last timestamp the affected bucket has seen.
	// Timestamps must be non-decreasing per limiter; the decay formula is
	// undefined for negative elapsed time, so the violation is surfaced
	// loudly instead of being silently clamped.
	ErrTimestampOutOfOrder = errors.New("timestamp is earlier than the bucket's last timestamp")
)

// Limit describes an admission rate: a burst capacity and the window over
// which a full bucket drains back to empty. The drain rate (capacity units
// per microsecond) is derived once at construction and cached.
//
// A Limit is immutable. One Limit value is shared by every bucket it
// governs, whether that is the single bucket of a Limiter, the per-key
// buckets of a KeyedLimiter, or the cell grid of a Sketch.
type Limit struct {
	capacity float64
	windowUS int64
	rate     float64
}

// NewLimit builds a Limit from a burst capacity and a drain window.
// Capacity may be fractional. The window is truncated to microsecond
// resolution, the granularity all bucket accounting runs at.
func NewLimit(capacity float64, window time.Duration) (Limit, error) {
	if capacity <= 0 {
		return Limit{}, ErrInvalidCapacity
	}
	us := window.Microseconds()
	if us <= 0 {
		return Limit{}, ErrInvalidWindow
	}
	return Limit{
		capacity: capacity,
		windowUS: us,
		rate:     capacity / float64(us),
	}, nil
}

// Capacity returns the burst capacity.
func (l Limit) Capacity() float64 { return l.capacity }

// Window returns the drain window.
func (l Limit) Window() time.Duration { return time.Duration(l.windowUS) * time.Microsecond }

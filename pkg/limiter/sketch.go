package limiter

import (
	"sync"
	"time"
)

// Sketch applies one Limit per key in O(rows*cols) memory, independent of
// how many distinct keys are ever observed. Each key hashes to one cell per
// row; the minimum level across those cells is the estimate of the key's
// true level, count-min style. Because cells are shared through hash
// collisions, a key can be denied admission it should have received when
// hot neighbours inflate all of its rows, but it can never be admitted when
// its own true level alone would exceed the capacity.
//
// Safe for concurrent use; one check's decay, estimate, and admissions form
// a single critical section.
type Sketch struct {
	mu       sync.Mutex
	limit    Limit
	rows     int
	cols     int
	cells    []bucket
	hash     Hasher
	recorder MetricsRecorder
}

// NewSketch constructs a Sketch of rows x cols cells. Rows must be in
// [1, MaxRows]; more rows sharpen the estimate, more columns reduce
// collisions. The grid is fixed for the lifetime of the Sketch.
func NewSketch(limit Limit, rows, cols int, opts ...Option) (*Sketch, error) {
	if rows < 1 || rows > MaxRows {
		return nil, ErrInvalidRowCount
	}
	if cols < 1 {
		return nil, ErrInvalidColCount
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Sketch{
		limit:    limit,
		rows:     rows,
		cols:     cols,
		cells:    make([]bucket, rows*cols),
		hash:     s.hasher,
		recorder: s.recorder,
	}, nil
}

// Allow reports whether one unit is admitted for key at ts.
func (s *Sketch) Allow(key string, ts time.Time) (bool, error) {
	return s.AllowN(key, ts, 1)
}

// AllowN reports whether count units are admitted for key at ts, all or
// nothing. One cell per row is selected by hashing the key; every selected
// cell is decayed to ts and the minimum resulting level is checked against
// the capacity. A rejection mutates no levels. On admission every selected
// cell commits at least minimum+count — the minimum acts as a floor so a
// cell whose stored level was dragged down by a quieter colliding key still
// converges toward the shared estimate.
//
// Timestamps must be non-decreasing across all checks that touch a cell;
// in practice that means non-decreasing per Sketch.
func (s *Sketch) AllowN(key string, ts time.Time, count float64) (bool, error) {
	if count < 0 {
		return false, ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nowUS := ts.UnixMicro()
	lanes := s.hash(key, s.rows)

	// Resolve the cell indexes and verify ordering up front so an
	// out-of-order timestamp cannot leave some rows stamped and others not.
	idx := make([]int, s.rows)
	for r := 0; r < s.rows; r++ {
		i := r*s.cols + int(lanes[r]%uint32(s.cols))
		if nowUS < s.cells[i].lastUS {
			return false, ErrTimestampOutOfOrder
		}
		idx[r] = i
	}

	minLevel := s.limit.capacity + count
	for _, i := range idx {
		level, err := s.cells[i].decay(s.limit, nowUS)
		if err != nil {
			return false, err
		}
		if level < minLevel {
			minLevel = level
		}
	}

	if minLevel+count > s.limit.capacity {
		s.recorder.Add(MetricDenied, 1, nil)
		return false, nil
	}

	// Per-cell results are deliberately ignored: the minimum already
	// decided admission. A cell hotter than the minimum keeps its own
	// level; the floor only pulls colder cells up to minLevel+count.
	for _, i := range idx {
		s.cells[i].admit(s.limit, count, minLevel)
	}
	s.recorder.Add(MetricAllowed, 1, nil)
	s.recorder.Observe(MetricLevel, minLevel+count, nil)
	return true, nil
}

// Rows returns the configured row count.
func (s *Sketch) Rows() int { return s.rows }

// Cols returns the configured column count.
func (s *Sketch) Cols() int { return s.cols }

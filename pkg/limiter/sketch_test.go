package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// laneMap returns a Hasher that assigns fixed lanes per key, used to force
// or rule out collisions deterministically.
func laneMap(lanes map[string][]uint32) Hasher {
	return func(key string, n int) []uint32 {
		out := make([]uint32, n)
		copy(out, lanes[key])
		return out
	}
}

func TestNewSketch_Validation(t *testing.T) {
	limit := mustLimit(t, 2, 10*time.Second)

	_, err := NewSketch(limit, 0, 5)
	assert.ErrorIs(t, err, ErrInvalidRowCount)

	_, err = NewSketch(limit, MaxRows+1, 5)
	assert.ErrorIs(t, err, ErrInvalidRowCount)

	_, err = NewSketch(limit, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidColCount)

	s, err := NewSketch(limit, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 5, s.Cols())
}

func TestSketch_MatchesKeyedBehaviourWithoutCollisions(t *testing.T) {
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5)
	require.NoError(t, err)

	ok, err := s.Allow("abc", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Allow("abc", t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Allow("abc", t0)
	require.NoError(t, err)
	assert.False(t, ok, "third request at the same instant exceeds the burst")

	ok, err = s.Allow("abc", t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSketch_CollisionCausesFalseRejection(t *testing.T) {
	// Every key hashes to the same cells.
	collide := func(key string, n int) []uint32 { return make([]uint32, n) }
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5, WithHasher(collide))
	require.NoError(t, err)

	ok, err := s.AllowN("hog", t0, 2)
	require.NoError(t, err)
	require.True(t, ok)

	// "victim" has consumed nothing, but its rows are fully inflated by
	// "hog". Denying it is the documented false-positive mode.
	ok, err = s.Allow("victim", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSketch_PartialCollisionNeverOverAdmits(t *testing.T) {
	// a and b share their row-0 cell but have private row-1 cells.
	h := laneMap(map[string][]uint32{
		"a": {0, 0},
		"b": {0, 1},
	})
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5, WithHasher(h))
	require.NoError(t, err)

	ok, err := s.AllowN("a", t0, 2)
	require.NoError(t, err)
	require.True(t, ok)

	// b's row-1 cell is untouched, so the minimum still sees b's true
	// level and admits it up to -- but never beyond -- its own budget.
	admitted := 0
	for i := 0; i < 5; i++ {
		ok, err = s.Allow("b", t0)
		require.NoError(t, err)
		if ok {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestSketch_FloorPullsColdCellsUp(t *testing.T) {
	h := laneMap(map[string][]uint32{
		"x": {0, 0},
		"y": {0, 1},
	})
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5, WithHasher(h))
	require.NoError(t, err)

	_, err = s.AllowN("x", t0, 2)
	require.NoError(t, err)
	ok, err := s.Allow("y", t0)
	require.NoError(t, err)
	require.True(t, ok)

	// Two seconds later y's cells read 1.6 (shared, hot) and 0.6
	// (private). The admit must commit the private cell to min+count, and
	// the hot cell, which cannot fit min+count on top of its own level,
	// keeps its level as-is. Both rows land on 1.6.
	ok, err = s.Allow("y", t0.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 1.6, s.cells[0].level, 1e-9, "hot shared cell keeps its own level")
	assert.InDelta(t, 1.6, s.cells[s.cols+1].level, 1e-9, "cold cell is pulled up to min+count")
}

func TestSketch_RejectionMutatesNothing(t *testing.T) {
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 3, 4)
	require.NoError(t, err)

	_, err = s.AllowN("k", t0, 2)
	require.NoError(t, err)

	before := make([]bucket, len(s.cells))
	copy(before, s.cells)

	ok, err := s.AllowN("k", t0, 1)
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, before, s.cells, "a denied check must not change any level")
}

func TestSketch_OutOfOrderTimestamp(t *testing.T) {
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5)
	require.NoError(t, err)

	_, err = s.Allow("k", t0)
	require.NoError(t, err)

	before := make([]bucket, len(s.cells))
	copy(before, s.cells)

	_, err = s.Allow("k", t0.Add(-time.Second))
	assert.ErrorIs(t, err, ErrTimestampOutOfOrder)
	assert.Equal(t, before, s.cells, "no row may be stamped when ordering fails")
}

func TestSketch_NegativeCount(t *testing.T) {
	s, err := NewSketch(mustLimit(t, 2, 10*time.Second), 2, 5)
	require.NoError(t, err)

	_, err = s.AllowN("k", t0, -0.5)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestXXHashLanes(t *testing.T) {
	a := xxhashLanes("some-key", MaxRows)
	b := xxhashLanes("some-key", MaxRows)
	assert.Equal(t, a, b, "lanes must be deterministic per key")
	require.Len(t, a, MaxRows)

	distinct := map[uint32]bool{}
	for _, lane := range a {
		distinct[lane] = true
	}
	assert.Greater(t, len(distinct), 1, "lanes should not all coincide")

	c := xxhashLanes("other-key", MaxRows)
	assert.NotEqual(t, a, c)
}

func BenchmarkSketch_AllowN(b *testing.B) {
	limit, _ := NewLimit(1e9, time.Second)
	s, _ := NewSketch(limit, 4, 1024)
	now := time.Now()

	for i := 0; i < b.N; i++ {
		s.AllowN("bench", now, 2)
	}
}

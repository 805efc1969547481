// Package limiter provides admission-control rate limiting based on a
// continuous leaky-bucket model, in three escalating structures:
//
//   - Limiter: one bucket guarding one resource.
//   - KeyedLimiter: one bucket per key, exact, with memory proportional to
//     the number of live keys.
//   - Sketch: a fixed grid of buckets shared across all keys through
//     hashing, approximate, with memory independent of key cardinality.
//
// The primary entry point on each structure is Allow / AllowN:
//
//	ok, err := kl.AllowN(key, ts, 1)
//
// The returned bool reports whether the request is admitted; a false result
// is the nominal outcome under load, not an error.
//
// # Overview
//
// Each bucket holds a fill level that drains linearly with elapsed time:
// a full bucket empties over one window. Every check first decays the
// bucket to the supplied timestamp, then admits the requested count if the
// decayed level plus the count fits under the capacity. Admission is all or
// nothing; there is no partial admission of a fraction of the count.
//
// Unlike fixed-window counters, the continuous decay admits bursts up to
// the capacity while still enforcing the long-term average rate, and it
// does so without any background refill work.
//
// # Core Types
//
// Limit defines the policy and is built once with NewLimit:
//
//   - Capacity: the burst size, the most a bucket can hold (fractional
//     values are allowed; so are fractional per-request counts)
//   - Window: the time a full bucket takes to drain back to empty
//
// One Limit value is shared by reference semantics across every bucket it
// governs; limits and per-key state are deliberately separate types rather
// than one fused struct per key.
//
// # Timestamps
//
// Checks take the timestamp as an argument instead of reading the wall
// clock, which keeps the accounting deterministic and directly testable.
// Timestamps are normalized internally to microseconds since the Unix epoch
// in UTC, so naive-UTC and zoned values of the same instant behave
// identically. They must be non-decreasing per limiter: a check that runs
// backwards in time returns ErrTimestampOutOfOrder instead of silently
// computing a negative elapsed interval.
//
// # Choosing a Structure
//
// KeyedLimiter is exact and self-cleaning: a check that finds a bucket
// fully drained while asking for a single unit deletes the bucket on the
// spot, so steady traffic reclaims long-tail keys for free. Workloads whose
// requests always carry counts greater than one should call Sweep
// periodically instead.
//
// Sketch trades exactness for constant memory. A key maps to one cell per
// row via independent 32-bit hash lanes; the minimum level across those
// cells is a lower-bound estimate of the key's true level, in the manner of
// a count-min sketch. Collisions can therefore cause false rejections for
// a key whose own traffic would have been admitted, but never false
// admissions. More rows sharpen the estimate (up to MaxRows), more columns
// reduce collisions.
//
// RedisLimiter is the distributed counterpart of KeyedLimiter. It runs the
// decay/admit cycle in a Lua script so the read/compute/write is atomic,
// making one global budget per key safe across many application instances.
// Bucket keys expire after a window of inactivity.
//
// # Concurrency
//
// Limiter, KeyedLimiter and Sketch are safe for concurrent use; each guards
// its state with a mutex so the decay and admission of one check execute as
// a single critical section. Sweep holds the same mutex for its whole pass.
// RedisLimiter delegates concurrency safety to Redis and the go-redis
// client.
//
// # Context and Error Policy
//
// The in-memory structures never block and take no context. RedisLimiter
// accepts a context.Context, bounds it with the WithTimeout option, and
// returns Redis errors directly; this package does not impose a "fail open"
// vs "fail closed" policy, the caller decides whether to deny or allow
// traffic when the backend is unreachable.
//
// # Metrics
//
// All constructors accept WithRecorder to inject a MetricsRecorder.
// Decisions are counted under "ratelimit.allowed" and "ratelimit.denied",
// reclaimed keys under "ratelimit.evicted", and RedisLimiter additionally
// emits "ratelimit.call" and "ratelimit.latency" per round trip.
// PrometheusRecorder adapts a Prometheus registry to this interface; the
// default recorder discards everything.
//
// # Usage
//
// For a runnable example using KeyedLimiter, see ExampleKeyedLimiter in
// example_test.go.
package limiter

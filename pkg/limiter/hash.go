package limiter

import "github.com/cespare/xxhash/v2"

// Hasher derives n independent-looking 32-bit values from a key. It must be
// deterministic per key and spread keys uniformly across each lane; a Sketch
// uses one lane per row to pick that row's cell. Implementations may slice a
// wide digest into 32-bit lanes or combine several digests.
type Hasher func(key string, n int) []uint32

// MaxRows caps how many rows a Sketch may have. Nine lanes is what two
// combined digests of 128 and 160 bits yield when sliced into 32-bit
// values; the default xxhash-based hasher could produce more, but the cap
// is kept as a configuration constraint so alternative hashers with fixed
// digest widths stay interchangeable.
const MaxRows = 9

// laneSalt perturbs the second digest so the two 64-bit hashes behave as
// independent functions of the key.
const laneSalt = "\x00ratelimiting\x00"

// xxhashLanes is the default Hasher. It computes two xxhash64 digests of
// the key (one salted) and combines them as h1 + i*h2, the standard way to
// simulate many independent hash functions from two.
func xxhashLanes(key string, n int) []uint32 {
	h1 := xxhash.Sum64String(key)

	var d xxhash.Digest
	d.Reset()
	d.WriteString(laneSalt)
	d.WriteString(key)
	h2 := d.Sum64()

	lanes := make([]uint32, n)
	for i := range lanes {
		lanes[i] = uint32((h1 + uint64(i)*h2) >> 32)
	}
	return lanes
}

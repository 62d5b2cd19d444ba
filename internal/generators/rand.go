package generators

import "math/rand/v2"

// newRand builds a deterministic generator seeded from a single uint64,
// using rand.NewPCG with the seed as both halves — the same seed always
// produces the same stream, satisfying §4.2's "same seed → same bytes".
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Package game holds what the bingo and raffle engines share: the error
// kinds they report, the randomness they consume, and the registry of
// automatic sessions that are currently running.
package game

import "math/rand/v2"

// Rand is the randomness consumed by card generation and the automatic draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a uniform value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide generator and is safe for
// concurrent use.
var DefaultRand Rand = globalRand{}

// NewSeededRand returns a deterministic generator, used by tests and replays.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

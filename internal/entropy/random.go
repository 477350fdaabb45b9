// Package entropy provides reproducible random streams for the simulation.
// Every agent draws from its own stream derived from the run seed and the
// agent ID, so results do not depend on how the decide phase is scheduled.
// Seed 0 asks for a fresh seed from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
)

// Well-known stream ids for non-agent consumers. Agent streams use the agent ID,
// which starts at 1, so these never collide.
const (
	StreamConflict uint64 = 1 << 62
	StreamScenario uint64 = 1<<62 + 1
)

// Source is the minimal interface used by route selection and sampling.
type Source interface {
	Float64() float64
}

// NewStream returns a generator for the given seed and stream id.
func NewStream(seed, stream uint64) *mrand.Rand {
	return mrand.New(mrand.NewPCG(seed, mix(stream)))
}

// mix spreads sequential stream ids across the PCG increment space (splitmix64).
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// ResolveSeed returns seed unchanged, or a crypto-random seed when it is 0.
func ResolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms; keep a fixed fallback.
		return 0x5eed
	}
	if s := binary.LittleEndian.Uint64(buf[:]); s != 0 {
		return s
	}
	return 0x5eed
}

// WeightedIndex draws an index with probability proportional to weights.
// Negative weights count as zero. It returns -1 when weights is empty or
// sums to zero.
func WeightedIndex(src Source, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}

	target := src.Float64() * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	// Floating point shortfall lands on the last positive weight.
	return last
}

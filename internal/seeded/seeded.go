// Package seeded provides reproducible pseudo-randomness driven by string
// seeds. Everything here is pure: the same seed always yields the same stream.
package seeded

import "hash/fnv"

// HashString returns the 32-bit FNV-1a hash of s.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Source is a mulberry32 generator. The zero value is a valid stream for
// seed 0. A Source is not safe for concurrent use.
type Source struct {
	state uint32
}

// New returns a generator for seed.
func New(seed uint32) *Source {
	return &Source{state: seed}
}

// FromString seeds a generator from the hash of s.
func FromString(s string) *Source {
	return New(HashString(s))
}

// Uint32 advances the stream.
func (s *Source) Uint32() uint32 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint32()) / 4294967296.0
}

// Intn returns a value in [0, n). It panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("seeded: Intn called with n <= 0")
	}
	return int(s.Float64() * float64(n))
}

// Shuffle permutes n elements with Fisher-Yates.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

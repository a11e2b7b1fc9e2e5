package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Rand yields uniform integers in [0, n). *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewRand returns a PCG generator seeded from crypto/rand.
func NewRand() (*rand.Rand, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	seed1 := binary.LittleEndian.Uint64(b[:8])
	seed2 := binary.LittleEndian.Uint64(b[8:])
	return rand.New(rand.NewPCG(seed1, seed2)), nil
}

// NewSeededRand is the deterministic variant used by tests and replays.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Draw picks count distinct participants from pool, in announcement order.
// The pool slice is never modified.
func Draw(pool []Participant, count int, rng Rand) ([]Participant, error) {
	if count < 1 || count > len(pool) {
		return nil, fmt.Errorf("%w: requested %d, remaining %d", ErrInvalidCount, count, len(pool))
	}

	candidates := make([]Participant, len(pool))
	copy(candidates, pool)

	winners := make([]Participant, 0, count)
	for len(winners) < count {
		i := rng.IntN(len(candidates))
		winners = append(winners, candidates[i])

		// swap-remove; candidate order does not matter for uniform picks
		last := len(candidates) - 1
		candidates[i] = candidates[last]
		candidates = candidates[:last]
	}
	return winners, nil
}

// Remove returns pool without the given participants, keeping pool order.
func Remove(pool, drawn []Participant) []Participant {
	gone := make(map[string]bool, len(drawn))
	for _, p := range drawn {
		gone[p.ID] = true
	}

	remaining := make([]Participant, 0, len(pool))
	for _, p := range pool {
		if !gone[p.ID] {
			remaining = append(remaining, p)
		}
	}
	return remaining
}

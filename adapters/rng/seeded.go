// Package rng provides deterministic random streams for resampling and
// synthetic data.
package rng

import (
	"context"
	"fmt"
	"math/rand/v2"

	"powerfit/domain/core"
	"powerfit/ports"
)

// SeededAdapter implements ports.RNGPort with PCG sources whose state is
// derived from the caller's seed and a stream label.
type SeededAdapter struct{}

var _ ports.RNGPort = (*SeededAdapter)(nil)

// NewSeededAdapter creates the adapter.
func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *SeededAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state := uint64(seed)
	if name != "" {
		state = splitmix64(state ^ uint64(hashString(name)))
	}
	return newStream(state), nil
}

// RoundStream creates the stream for one bootstrap round.
func (r *SeededAdapter) RoundStream(ctx context.Context, seed int64, round int) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if round < 0 {
		return nil, core.NewInvalidArgumentError("round stream", fmt.Sprintf("negative round %d", round))
	}
	return newStream(splitmix64(uint64(seed) + 0x9e3779b97f4a7c15*uint64(round+1))), nil
}

func newStream(state uint64) *rand.Rand {
	return rand.New(rand.NewPCG(state, splitmix64(state)))
}

// splitmix64 scrambles nearby seeds into unrelated ones.
func splitmix64(z uint64) uint64 {
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2
	}
	return hash
}

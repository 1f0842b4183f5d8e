package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations.
// The returned *rand.Rand also satisfies rand.Source, so it can feed gonum
// distributions directly.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// RoundStream creates the stream for one bootstrap round. The stream depends
	// only on (seed, round), so rounds can run in any order or in parallel.
	RoundStream(ctx context.Context, seed int64, round int) (*rand.Rand, error)
}

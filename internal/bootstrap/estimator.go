// Package bootstrap builds empirical distributions of power-law parameters
// by refitting resampled subsets of the data.
//
// Rounds are independent. Round i draws its indices from a stream seeded by
// (Options.Seed, i), so a run's output depends only on the data and the
// options, never on how many workers executed it.
//
// When a round fails, the run follows Options.Policy. AbortOnFailure, the
// default, cancels the remaining rounds and returns a *RoundError.
// SkipFailures stores NaN in the failed round's slots, records the failure
// in Distribution.Failures and carries on.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"powerfit/adapters/stats/powerlaw"
	"powerfit/domain/core"
	"powerfit/domain/fit"
	"powerfit/domain/sample"
	"powerfit/internal"
	"powerfit/ports"
)

// Fitter is the orthogonal distance fit each round runs.
type Fitter interface {
	FitODR(ctx context.Context, logX, logY []float64, opts ...powerlaw.ODROption) (fit.ODRResult, error)
}

// Options controls a bootstrap run.
type Options struct {
	Fraction float64
	Rounds   int
	Seed     int64
	Workers  int
	Policy   fit.FailurePolicy
}

// DefaultOptions returns fraction 0.9, 1000 rounds, seed 42, one worker per
// CPU and AbortOnFailure.
func DefaultOptions() Options {
	return Options{
		Fraction: 0.9,
		Rounds:   1000,
		Seed:     42,
		Workers:  runtime.GOMAXPROCS(0),
		Policy:   fit.AbortOnFailure,
	}
}

// RoundError is the failure of a single round.
type RoundError struct {
	Round int
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("bootstrap round %d: %v", e.Round, e.Err)
}

func (e *RoundError) Unwrap() error {
	return e.Err
}

// Estimator runs bootstrap resampling.
type Estimator struct {
	fitter Fitter
	rng    ports.RNGPort
	logger *internal.Logger
}

// NewEstimator creates an estimator.
func NewEstimator(fitter Fitter, rng ports.RNGPort, logger *internal.Logger) *Estimator {
	if logger == nil {
		logger = internal.Discard
	}
	return &Estimator{fitter: fitter, rng: rng, logger: logger.With("bootstrap")}
}

// Run resamples (xs, ys) opts.Rounds times and fits each resample.
//
// Rows with a non-finite x or y are dropped once up front. Each round draws
// floor(Fraction*valid) rows uniformly with replacement, takes natural logs
// and fits them with an unconstrained FitODR. Rows that are non-positive
// survive the pre-filter and are masked by the fit after the log.
func (e *Estimator) Run(ctx context.Context, xs, ys []float64, opts Options) (*fit.Distribution, error) {
	const op = "bootstrap"

	fx, fy, err := sample.Filter(xs, ys, sample.Finite)
	if err != nil {
		return nil, err
	}
	valid := len(fx)

	if opts.Rounds < 1 {
		return nil, core.NewInvalidArgumentError(op, fmt.Sprintf("rounds must be positive, got %d", opts.Rounds))
	}
	if !(opts.Fraction > 0 && opts.Fraction <= 1) {
		return nil, core.NewDegenerateError(op, valid, fmt.Sprintf("fraction %g outside (0, 1]", opts.Fraction))
	}
	subset := int(math.Floor(opts.Fraction * float64(valid)))
	if subset < 2 {
		return nil, &core.InsufficientDataError{
			Op:       op,
			Valid:    valid,
			Required: int(math.Ceil(2 / opts.Fraction)),
			Reason:   fmt.Sprintf("subset of %d rows at fraction %g", subset, opts.Fraction),
		}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	dist := &fit.Distribution{
		RunID:       core.NewRunID(),
		Seed:        opts.Seed,
		Rounds:      opts.Rounds,
		SubsetSize:  subset,
		ValidPoints: valid,
		Policy:      opts.Policy.String(),
		Exponents:   make(fit.Values, opts.Rounds),
		Prefactors:  make(fit.Values, opts.Rounds),
		Rs:          make(fit.Values, opts.Rounds),
	}
	failed := make([]error, opts.Rounds)

	logger := e.logger.With("bootstrap " + dist.RunID.String())
	logger.Info("starting %d rounds: %d of %d rows, seed %d, %d workers, policy %s",
		opts.Rounds, subset, valid, opts.Seed, workers, opts.Policy)
	start := time.Now()

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	for round := 0; round < opts.Rounds; round++ {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			res, err := e.round(gctx, fx, fy, subset, opts.Seed, round)
			if err != nil {
				if opts.Policy == fit.AbortOnFailure || gctx.Err() != nil {
					return &RoundError{Round: round, Err: err}
				}
				failed[round] = err
				dist.Exponents[round] = math.NaN()
				dist.Prefactors[round] = math.NaN()
				dist.Rs[round] = math.NaN()
				return nil
			}
			dist.Exponents[round] = res.Exponent
			dist.Prefactors[round] = res.Prefactor
			dist.Rs[round] = res.R
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("aborted after %v: %v", time.Since(start), err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for round, err := range failed {
		if err == nil {
			continue
		}
		logger.Warn("round %d skipped: %v", round, err)
		dist.Failures = append(dist.Failures, fit.RoundFailure{Round: round, Error: err.Error()})
	}

	logger.Info("completed %d rounds in %v (%d skipped)", opts.Rounds, time.Since(start), len(dist.Failures))
	return dist, nil
}

func (e *Estimator) round(ctx context.Context, xs, ys []float64, subset int, seed int64, round int) (fit.ODRResult, error) {
	if err := ctx.Err(); err != nil {
		return fit.ODRResult{}, err
	}
	stream, err := e.rng.RoundStream(ctx, seed, round)
	if err != nil {
		return fit.ODRResult{}, err
	}

	idx := make([]int, subset)
	for i := range idx {
		idx[i] = stream.IntN(len(xs))
	}
	logX := sample.Log(sample.Gather(nil, xs, idx))
	logY := sample.Log(sample.Gather(nil, ys, idx))

	return e.fitter.FitODR(ctx, logX, logY)
}

// IsRoundError reports whether err carries a *RoundError.
func IsRoundError(err error) bool {
	var re *RoundError
	return errors.As(err, &re)
}

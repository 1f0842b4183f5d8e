// Package summary condenses bootstrap distributions into point statistics
// and percentile intervals.
package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"powerfit/domain/core"
	"powerfit/domain/fit"
)

// Summarize describes each parameter of dist over its finite rounds. The
// interval spans the central level fraction of the values, so level 0.95
// gives the 2.5th and 97.5th percentiles. The prefactor spread is also
// reported as a multiplicative sigma star.
func Summarize(dist *fit.Distribution, level float64) (fit.Summary, error) {
	const op = "summarize"
	if dist == nil {
		return fit.Summary{}, core.NewInvalidArgumentError(op, "nil distribution")
	}
	if !(level > 0 && level < 1) {
		return fit.Summary{}, core.NewInvalidArgumentError(op, fmt.Sprintf("level must be in (0, 1), got %g", level))
	}

	out := fit.Summary{RunID: dist.RunID, Level: level}
	var err error
	if out.Exponent, err = Describe(dist.Exponents, level); err != nil {
		return fit.Summary{}, fmt.Errorf("exponent: %w", err)
	}
	if out.Prefactor, err = Describe(dist.Prefactors, level); err != nil {
		return fit.Summary{}, fmt.Errorf("prefactor: %w", err)
	}
	if out.PrefactorSigmaStar, err = SigmaStar(dist.Prefactors); err != nil {
		return fit.Summary{}, fmt.Errorf("prefactor sigma star: %w", err)
	}
	if out.R, err = Describe(dist.Rs, level); err != nil {
		return fit.Summary{}, fmt.Errorf("r: %w", err)
	}
	return out, nil
}

// Describe summarizes the finite entries of vals. StdDev is the population
// standard deviation.
func Describe(vals []float64, level float64) (fit.ParameterSummary, error) {
	const op = "describe"
	data := finite(vals)
	if len(data) == 0 {
		return fit.ParameterSummary{}, core.NewInsufficientDataError(op, 0, 1)
	}
	sort.Float64s(data)

	mean, err := stats.Mean(data)
	if err != nil {
		return fit.ParameterSummary{}, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return fit.ParameterSummary{}, err
	}
	std, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return fit.ParameterSummary{}, err
	}

	tail := (1 - level) / 2
	return fit.ParameterSummary{
		Mean:   mean,
		Median: median,
		StdDev: std,
		Lower:  percentile(data, tail),
		Upper:  percentile(data, 1-tail),
		Valid:  len(data),
	}, nil
}

// SigmaStar returns the multiplicative standard deviation exp(std(ln v)),
// ignoring values whose log is not finite.
func SigmaStar(vals []float64) (float64, error) {
	logs := make(stats.Float64Data, 0, len(vals))
	for _, v := range vals {
		if l := math.Log(v); !math.IsNaN(l) && !math.IsInf(l, 0) {
			logs = append(logs, l)
		}
	}
	if len(logs) == 0 {
		return math.NaN(), core.NewInsufficientDataError("sigma star", 0, 1)
	}
	std, err := stats.StandardDeviationPopulation(logs)
	if err != nil {
		return math.NaN(), err
	}
	return math.Exp(std), nil
}

// percentile interpolates linearly between the order statistics of sorted
// at position q*(n-1).
func percentile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func finite(vals []float64) stats.Float64Data {
	out := make(stats.Float64Data, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

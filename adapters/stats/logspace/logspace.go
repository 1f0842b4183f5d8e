// Package logspace provides NaN-safe correlation and regression over paired
// log-scale data. Every masked function builds a fresh Finite validity mask,
// filters both sequences with it and runs the statistic on what remains, so
// the result is the same as calling the statistic with invalid rows removed.
package logspace

import (
	"powerfit/domain/core"
	"powerfit/domain/fit"
	"powerfit/domain/sample"
)

// MaskedRankCorrelation computes Spearman's rho over rows where both values
// are finite.
func MaskedRankCorrelation(logX, logY []float64) (fit.Correlation, error) {
	xs, ys, err := masked("MaskedRankCorrelation", logX, logY)
	if err != nil {
		return fit.Correlation{}, err
	}
	return Spearman(xs, ys)
}

// MaskedLinearCorrelation computes Pearson's r over rows where both values
// are finite.
func MaskedLinearCorrelation(logX, logY []float64) (fit.Correlation, error) {
	xs, ys, err := masked("MaskedLinearCorrelation", logX, logY)
	if err != nil {
		return fit.Correlation{}, err
	}
	return Pearson(xs, ys)
}

// MaskedLinearRegression fits logY on logX by ordinary least squares over
// rows where both values are finite.
func MaskedLinearRegression(logX, logY []float64) (fit.Regression, error) {
	xs, ys, err := masked("MaskedLinearRegression", logX, logY)
	if err != nil {
		return fit.Regression{}, err
	}
	return LinearRegression(xs, ys)
}

func masked(op string, logX, logY []float64) (xs, ys []float64, err error) {
	xs, ys, err = sample.Filter(logX, logY, sample.Finite)
	if err != nil {
		return nil, nil, err
	}
	if len(xs) < 2 {
		return nil, nil, core.NewInsufficientDataError(op, len(xs), 2)
	}
	return xs, ys, nil
}

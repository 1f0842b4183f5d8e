package logspace

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"powerfit/domain/core"
	"powerfit/domain/fit"
)

// tiny keeps the slope t statistic finite when |r| rounds to 1.
const tiny = 1e-20

// Pearson computes the linear correlation of already-masked data.
func Pearson(xs, ys []float64) (fit.Correlation, error) {
	const op = "pearson"
	n, err := checkPaired(op, xs, ys)
	if err != nil {
		return fit.Correlation{}, err
	}
	if stat.Variance(xs, nil) == 0 {
		return fit.Correlation{}, core.NewDegenerateError(op, n, "x values have zero variance")
	}
	if stat.Variance(ys, nil) == 0 {
		return fit.Correlation{}, core.NewDegenerateError(op, n, "y values have zero variance")
	}

	r := clampUnit(stat.Correlation(xs, ys, nil))
	return fit.Correlation{R: r, PValue: correlationPValue(r, n), N: n}, nil
}

// Spearman computes the rank correlation of already-masked data. Ties get
// the average of the ranks they span.
func Spearman(xs, ys []float64) (fit.Correlation, error) {
	const op = "spearman"
	n, err := checkPaired(op, xs, ys)
	if err != nil {
		return fit.Correlation{}, err
	}

	c, err := Pearson(Ranks(xs), Ranks(ys))
	if err != nil {
		return fit.Correlation{}, core.NewDegenerateError(op, n, "all values tied")
	}
	return c, nil
}

// LinearRegression fits y = slope*x + intercept by ordinary least squares on
// already-masked data.
func LinearRegression(xs, ys []float64) (fit.Regression, error) {
	const op = "linear regression"
	n, err := checkPaired(op, xs, ys)
	if err != nil {
		return fit.Regression{}, err
	}

	xMean, xVar := meanBiasedVariance(xs)
	yMean, yVar := meanBiasedVariance(ys)
	if xVar == 0 {
		return fit.Regression{}, core.NewDegenerateError(op, n, "all x values are identical")
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	var r float64
	if yVar != 0 {
		var sxy float64
		for i := range xs {
			sxy += (xs[i] - xMean) * (ys[i] - yMean)
		}
		sxy /= float64(n)
		r = clampUnit(sxy / math.Sqrt(xVar*yVar))
	}

	reg := fit.Regression{Slope: slope, Intercept: intercept, R: r, N: n}
	if n == 2 {
		// an exact line through two points: no residual degrees of freedom
		if ys[0] == ys[1] {
			reg.PValue = 1.0
		}
		return reg, nil
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	reg.PValue = tTestPValue(t, df)
	reg.StdErr = math.Sqrt((1 - r*r) * yVar / xVar / df)
	reg.InterceptStdErr = reg.StdErr * math.Sqrt(xVar+xMean*xMean)
	return reg, nil
}

// Ranks converts values to 1-based ranks, averaging over ties.
func Ranks(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j
	}
	return ranks
}

func checkPaired(op string, xs, ys []float64) (int, error) {
	if len(xs) != len(ys) {
		return 0, core.NewLengthMismatchError(op, len(xs), len(ys))
	}
	if len(xs) < 2 {
		return len(xs), core.NewInsufficientDataError(op, len(xs), 2)
	}
	return len(xs), nil
}

// meanBiasedVariance returns the mean and the population (1/n) variance.
func meanBiasedVariance(vals []float64) (mean, variance float64) {
	mean, variance = stat.PopMeanVariance(vals, nil)
	return mean, variance
}

func clampUnit(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}

package logspace

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// tTestPValue computes the two-tailed p-value of a t statistic using
// Student's t-distribution.
func tTestPValue(tStatistic, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(tStatistic) {
		return 1.0
	}
	if math.IsInf(tStatistic, 0) {
		return 0
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: degreesOfFreedom}
	return 2 * tDist.Survival(math.Abs(tStatistic))
}

// correlationPValue computes the two-tailed p-value for a correlation
// coefficient under the null of no correlation. With two points any r is
// ±1 and carries no evidence, so the p-value is 1.
func correlationPValue(r float64, n int) float64 {
	if n < 3 {
		return 1.0
	}
	if math.Abs(r) >= 1 {
		return 0
	}

	// Transform correlation to t-statistic
	df := float64(n - 2)
	tStatistic := r * math.Sqrt(df/(1-r*r))

	return tTestPValue(tStatistic, df)
}

// Package fit defines the value types produced by correlation, regression,
// power-law fitting and bootstrap estimation.
package fit

import (
	"math"
	"strconv"

	"powerfit/domain/core"
)

// Correlation is a correlation coefficient with its two-sided p-value.
type Correlation struct {
	R      float64 `json:"r"`
	PValue float64 `json:"p_value"`
	N      int     `json:"n"`
}

// Regression is an ordinary least-squares line y = Slope*x + Intercept.
type Regression struct {
	Slope           float64 `json:"slope"`
	Intercept       float64 `json:"intercept"`
	R               float64 `json:"r"`
	PValue          float64 `json:"p_value"`
	StdErr          float64 `json:"stderr"`
	InterceptStdErr float64 `json:"intercept_stderr"`
	N               int     `json:"n"`
}

// OLSResult is a power law fitted by least squares on log-log data.
type OLSResult struct {
	Exponent  float64 `json:"exponent"`
	Prefactor float64 `json:"prefactor"`
	R         float64 `json:"r"`
	PValue    float64 `json:"p_value"`
	StdErr    float64 `json:"stderr"`
	N         int     `json:"n"`
}

// ODRResult is a power law fitted by orthogonal distance regression on
// log-log data. R is the Pearson correlation of the masked log data, not a
// measure of fit quality.
type ODRResult struct {
	Exponent   float64 `json:"exponent"`
	Prefactor  float64 `json:"prefactor"`
	R          float64 `json:"r"`
	N          int     `json:"n"`
	Form       string  `json:"form"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
}

// Predict evaluates prefactor * x^exponent.
func (r ODRResult) Predict(x float64) float64 {
	return r.Prefactor * math.Pow(x, r.Exponent)
}

// FailurePolicy decides what a bootstrap run does when one round's fit fails.
type FailurePolicy int

const (
	// AbortOnFailure stops the run and returns the first round error.
	AbortOnFailure FailurePolicy = iota
	// SkipFailures fills the failed round's slots with NaN and continues.
	SkipFailures
)

func (p FailurePolicy) String() string {
	if p == SkipFailures {
		return "skip"
	}
	return "abort"
}

// ParseFailurePolicy accepts "abort" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "abort", "":
		return AbortOnFailure, nil
	case "skip":
		return SkipFailures, nil
	}
	return AbortOnFailure, core.NewInvalidArgumentError("failure policy", strconv.Quote(s)+" is not abort or skip")
}

// RoundFailure records a skipped bootstrap round.
type RoundFailure struct {
	Round int    `json:"round"`
	Error string `json:"error"`
}

// Distribution holds one entry per bootstrap round in each of Exponents,
// Prefactors and Rs, index-aligned by round.
type Distribution struct {
	RunID       core.RunID     `json:"run_id"`
	Seed        int64          `json:"seed"`
	Rounds      int            `json:"rounds"`
	SubsetSize  int            `json:"subset_size"`
	ValidPoints int            `json:"valid_points"`
	Policy      string         `json:"failure_policy"`
	Exponents   Values         `json:"exponents"`
	Prefactors  Values         `json:"prefactors"`
	Rs          Values         `json:"rs"`
	Failures    []RoundFailure `json:"failures,omitempty"`
}

// ParameterSummary describes the empirical distribution of one parameter.
// Valid counts the non-NaN rounds the statistics were computed over.
type ParameterSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Valid  int     `json:"valid"`
}

// Summary condenses a Distribution into percentile intervals at Level.
// PrefactorSigmaStar is the multiplicative standard deviation of the
// prefactors, exp(std(ln prefactor)).
type Summary struct {
	RunID              core.RunID       `json:"run_id"`
	Level              float64          `json:"level"`
	Exponent           ParameterSummary `json:"exponent"`
	Prefactor          ParameterSummary `json:"prefactor"`
	PrefactorSigmaStar float64          `json:"prefactor_sigma_star"`
	R                  ParameterSummary `json:"r"`
}

// Values is a float sequence that encodes NaN and ±Inf as JSON null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(v)*8)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

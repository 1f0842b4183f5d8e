// Package powerlaw fits y = prefactor * x^exponent to positive-valued paired
// data, working on the natural logarithms of both variables.
//
// FitOLS regresses log y on log x and treats x as error free. FitODR fits
// the same line by orthogonal distance regression, so neither variable is
// treated as independent.
package powerlaw

import (
	"context"
	"math"

	"powerfit/adapters/stats/logspace"
	"powerfit/adapters/stats/odr"
	"powerfit/domain/core"
	"powerfit/domain/fit"
	"powerfit/domain/sample"
	"powerfit/internal"
	"powerfit/ports"
)

// Fitter estimates power-law parameters.
type Fitter struct {
	solver ports.ODRSolver
	logger *internal.Logger
}

// NewFitter creates a fitter that delegates orthogonal distance fits to solver.
func NewFitter(solver ports.ODRSolver, logger *internal.Logger) *Fitter {
	if logger == nil {
		logger = internal.Discard
	}
	return &Fitter{solver: solver, logger: logger.With("powerlaw")}
}

// FitOLS fits log y = exponent*log x + log prefactor by ordinary least
// squares. Only NaN rows are dropped; infinite values reach the regression.
func (f *Fitter) FitOLS(logX, logY []float64) (fit.OLSResult, error) {
	xs, ys, err := sample.Filter(logX, logY, sample.NotNaN)
	if err != nil {
		return fit.OLSResult{}, err
	}
	if len(xs) < 2 {
		return fit.OLSResult{}, core.NewInsufficientDataError("FitOLS", len(xs), 2)
	}

	reg, err := logspace.LinearRegression(xs, ys)
	if err != nil {
		return fit.OLSResult{}, err
	}
	return fit.OLSResult{
		Exponent:  reg.Slope,
		Prefactor: math.Exp(reg.Intercept),
		R:         reg.R,
		PValue:    reg.PValue,
		StdErr:    reg.StdErr,
		N:         reg.N,
	}, nil
}

// ODROption configures a FitODR call.
type ODROption func(*odrOptions)

type odrOptions struct {
	unitExponent bool
}

// WithUnitExponent fixes the exponent at 1 so only the prefactor is fitted.
func WithUnitExponent() ODROption {
	return func(o *odrOptions) { o.unitExponent = true }
}

// UnitExponent sets the fixed-exponent constraint from a flag.
func UnitExponent(on bool) ODROption {
	return func(o *odrOptions) { o.unitExponent = on }
}

// FitODR fits the power law by orthogonal distance regression on rows where
// both log values are finite. The solver is warm-started from an ordinary
// least squares fit. The returned R is Pearson's r of the masked log data,
// or NaN when it is undefined.
func (f *Fitter) FitODR(ctx context.Context, logX, logY []float64, opts ...ODROption) (fit.ODRResult, error) {
	const op = "FitODR"
	var o odrOptions
	for _, opt := range opts {
		opt(&o)
	}

	xs, ys, err := sample.Filter(logX, logY, sample.Finite)
	if err != nil {
		return fit.ODRResult{}, err
	}

	form := odr.Linear
	required := 2
	if o.unitExponent {
		form = odr.SlopeOne
		required = 1
	}
	if len(xs) < required {
		return fit.ODRResult{}, core.NewInsufficientDataError(op, len(xs), required)
	}

	beta0, err := warmStart(xs, ys, o.unitExponent)
	if err != nil {
		return fit.ODRResult{}, err
	}

	sol, err := f.solver.Solve(ctx, form, beta0, xs, ys)
	if err != nil {
		f.logger.Debug("%s failed on %d points: %v", op, len(xs), err)
		return fit.ODRResult{}, err
	}

	slope, intercept := 1.0, sol.Beta[0]
	if !o.unitExponent {
		slope, intercept = sol.Beta[0], sol.Beta[1]
	}

	// r is undefined when either coordinate has no spread; the fit stands.
	r := math.NaN()
	if corr, err := logspace.Pearson(xs, ys); err == nil {
		r = corr.R
	}

	return fit.ODRResult{
		Exponent:   slope,
		Prefactor:  math.Exp(intercept),
		R:          r,
		N:          len(xs),
		Form:       form.Name(),
		Iterations: sol.Iterations,
		Residual:   sol.Residual,
	}, nil
}

// warmStart derives the solver's starting parameters from least squares.
// With the slope fixed, only the intercept is used; when least squares is
// undefined (one point, or no spread in x) the mean offset y-x stands in.
func warmStart(xs, ys []float64, unitExponent bool) ([]float64, error) {
	reg, err := logspace.LinearRegression(xs, ys)
	if !unitExponent {
		if err != nil {
			return nil, err
		}
		return []float64{reg.Slope, reg.Intercept}, nil
	}
	if err == nil {
		return []float64{reg.Intercept}, nil
	}

	var offset float64
	for i := range xs {
		offset += ys[i] - xs[i]
	}
	return []float64{offset / float64(len(xs))}, nil
}

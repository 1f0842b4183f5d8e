package odr

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"powerfit/domain/core"
	"powerfit/internal"
	"powerfit/ports"
)

// Config bounds a Solver run. WeightY and WeightX weight the squared y
// errors and squared x corrections; both default to 1, which makes the
// objective the plain sum of squared orthogonal distances for a line.
type Config struct {
	MaxIterations     int
	GradientThreshold float64
	FunctionTolerance float64
	// SumSquaresTolerance accepts a run that stopped early (line search made
	// no progress) when a Gauss-Newton step from the final point would
	// reduce the objective by at most this fraction of its value.
	SumSquaresTolerance float64
	WeightY             float64
	WeightX             float64
}

// DefaultConfig returns the solver limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       2000,
		GradientThreshold:   1e-10,
		FunctionTolerance:   1e-14,
		SumSquaresTolerance: math.Sqrt(0x1p-52),
		WeightY:             1,
		WeightX:             1,
	}
}

// Solver minimizes
//
//	sum_i WeightY*(y_i - f(beta, x_i+delta_i))^2 + WeightX*delta_i^2
//
// over beta and the per-point x corrections delta. For a given beta each
// delta_i is an independent one-dimensional problem, solved by Gauss-Newton;
// the remaining objective in beta alone is minimized with BFGS.
type Solver struct {
	cfg    Config
	logger *internal.Logger
}

var _ ports.ODRSolver = (*Solver)(nil)

// NewSolver creates a solver. Zero fields of cfg take their DefaultConfig value.
func NewSolver(cfg Config, logger *internal.Logger) *Solver {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.GradientThreshold <= 0 {
		cfg.GradientThreshold = def.GradientThreshold
	}
	if cfg.FunctionTolerance <= 0 {
		cfg.FunctionTolerance = def.FunctionTolerance
	}
	if cfg.SumSquaresTolerance <= 0 {
		cfg.SumSquaresTolerance = def.SumSquaresTolerance
	}
	if cfg.WeightY <= 0 {
		cfg.WeightY = def.WeightY
	}
	if cfg.WeightX <= 0 {
		cfg.WeightX = def.WeightX
	}
	if logger == nil {
		logger = internal.Discard
	}
	return &Solver{cfg: cfg, logger: logger.With("odr")}
}

// Solve fits form to (xs, ys) starting from beta0.
func (s *Solver) Solve(ctx context.Context, form ports.FitForm, beta0, xs, ys []float64) (*ports.Solution, error) {
	const op = "odr solve"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(xs) != len(ys) {
		return nil, core.NewLengthMismatchError(op, len(xs), len(ys))
	}
	p := form.NumParams()
	if len(beta0) != p {
		return nil, core.NewInvalidArgumentError(op, "starting vector does not match form "+form.Name())
	}
	if len(xs) < p {
		return nil, core.NewInsufficientDataError(op, len(xs), p)
	}

	obj := &objective{form: form, xs: xs, ys: ys, wy: s.cfg.WeightY, wx: s.cfg.WeightX, dBeta: make([]float64, p)}
	start := append([]float64(nil), beta0...)

	problem := optimize.Problem{Func: obj.value, Grad: obj.gradient}
	settings := &optimize.Settings{
		GradientThreshold: s.cfg.GradientThreshold,
		MajorIterations:   s.cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.cfg.FunctionTolerance,
			Relative:   s.cfg.FunctionTolerance,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.BFGS{})
	if result == nil {
		return nil, &core.ConvergenceError{Op: op, Status: "NotStarted", Residual: math.NaN(), Cause: err}
	}

	x := result.Location.X
	grad := make([]float64, len(x))
	obj.gradient(grad, x)
	gradNorm := floats.Norm(grad, math.Inf(1))

	s.logger.Trace("form=%s n=%d status=%s iterations=%d evaluations=%d f=%g |grad|=%g",
		form.Name(), len(xs), result.Status, result.Stats.MajorIterations, result.Stats.FuncEvaluations, result.Location.F, gradNorm)

	if !s.converged(obj, result.Status, x, result.Location.F, grad) {
		return nil, &core.ConvergenceError{
			Op:         op,
			Iterations: result.Stats.MajorIterations,
			Residual:   result.Location.F,
			Status:     result.Status.String(),
			Cause:      err,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &ports.Solution{
		Beta:       append([]float64(nil), x...),
		Delta:      obj.corrections(x),
		Residual:   result.Location.F,
		Iterations: result.Stats.MajorIterations,
		Status:     result.Status.String(),
	}, nil
}

func (s *Solver) converged(obj *objective, status optimize.Status, beta []float64, f float64, grad []float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) || floats.HasNaN(grad) {
		return false
	}
	switch status {
	case optimize.GradientThreshold, optimize.FunctionConvergence, optimize.Success:
		return true
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		return false
	}
	// Near the minimum the line search can run out of representable
	// decrease before the gradient reaches GradientThreshold.
	return obj.predictedReduction(beta, grad) <= s.cfg.SumSquaresTolerance*f
}

// predictedReduction returns the decrease in the objective that a
// Gauss-Newton step from beta would achieve, or +Inf when the Gauss-Newton
// matrix is singular. With the corrections profiled out, point i
// contributes wy*wx/(wy*fx^2+wx) times its squared y residual.
func (o *objective) predictedReduction(beta, grad []float64) float64 {
	p := len(beta)
	h := mat.NewSymDense(p, nil)
	for i, x := range o.xs {
		xi := x + o.correction(beta, x, o.ys[i])
		fx := o.form.DerivX(beta, xi)
		w := 2 * o.wy * o.wx / (o.wy*fx*fx + o.wx)
		o.form.DerivBeta(o.dBeta, beta, xi)
		for j := 0; j < p; j++ {
			for k := j; k < p; k++ {
				h.SetSym(j, k, h.At(j, k)+w*o.dBeta[j]*o.dBeta[k])
			}
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(h) {
		return math.Inf(1)
	}
	g := mat.NewVecDense(p, append([]float64(nil), grad...))
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, g); err != nil {
		return math.Inf(1)
	}
	return 0.5 * mat.Dot(g, &step)
}

// maxCorrectionSteps bounds the Gauss-Newton iterations for one x
// correction. Linear forms settle after a single step.
const maxCorrectionSteps = 50

// objective holds the data for one Solve call. It is a function of beta
// only; the x corrections are re-derived for every evaluation.
type objective struct {
	form   ports.FitForm
	xs, ys []float64
	wy, wx float64
	dBeta  []float64
}

// correction returns the delta minimizing wy*(y - f(beta, x+delta))^2 + wx*delta^2.
func (o *objective) correction(beta []float64, x, y float64) float64 {
	var d float64
	for step := 0; step < maxCorrectionSteps; step++ {
		xi := x + d
		e := y - o.form.Eval(beta, xi)
		fx := o.form.DerivX(beta, xi)
		delta := (o.wy*e*fx - o.wx*d) / (o.wy*fx*fx + o.wx)
		d += delta
		if math.Abs(delta) <= 1e-15*(1+math.Abs(d)) {
			break
		}
	}
	return d
}

func (o *objective) corrections(beta []float64) []float64 {
	out := make([]float64, len(o.xs))
	for i, x := range o.xs {
		out[i] = o.correction(beta, x, o.ys[i])
	}
	return out
}

func (o *objective) value(beta []float64) float64 {
	var sum float64
	for i, x := range o.xs {
		d := o.correction(beta, x, o.ys[i])
		e := o.ys[i] - o.form.Eval(beta, x+d)
		sum += o.wy*e*e + o.wx*d*d
	}
	return sum
}

// gradient uses the fact that the partial derivative in delta vanishes at
// each optimal correction, leaving only the explicit dependence on beta.
func (o *objective) gradient(grad, beta []float64) {
	for k := range grad {
		grad[k] = 0
	}
	for i, x := range o.xs {
		xi := x + o.correction(beta, x, o.ys[i])
		e := o.ys[i] - o.form.Eval(beta, xi)
		o.form.DerivBeta(o.dBeta, beta, xi)
		for k, d := range o.dBeta {
			grad[k] -= 2 * o.wy * e * d
		}
	}
}

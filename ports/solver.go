package ports

import "context"

// FitForm is a model y = f(beta, x) together with its partial derivatives,
// as consumed by an orthogonal distance solver.
type FitForm interface {
	Name() string
	NumParams() int
	Eval(beta []float64, x float64) float64
	// DerivX returns df/dx at (beta, x).
	DerivX(beta []float64, x float64) float64
	// DerivBeta writes df/dbeta_k at (beta, x) into dst, len(dst) == NumParams().
	DerivBeta(dst, beta []float64, x float64)
}

// Solution is a converged orthogonal distance fit. Delta holds the fitted
// x corrections, Residual the final weighted sum of squares.
type Solution struct {
	Beta       []float64
	Delta      []float64
	Residual   float64
	Iterations int
	Status     string
}

// ODRSolver fits a FitForm to (xs, ys) by minimizing orthogonal distances,
// starting from beta0. A run that does not converge returns a
// *core.ConvergenceError.
type ODRSolver interface {
	Solve(ctx context.Context, form FitForm, beta0, xs, ys []float64) (*Solution, error)
}

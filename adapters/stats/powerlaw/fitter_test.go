package powerlaw

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"powerfit/adapters/rng"
	"powerfit/adapters/stats/odr"
	"powerfit/domain/core"
	"powerfit/domain/sample"
	"powerfit/internal/testkit"
	"powerfit/ports"
)

func newFitter() *Fitter {
	return NewFitter(odr.NewSolver(odr.DefaultConfig(), nil), nil)
}

func logs(xs, ys []float64) ([]float64, []float64) {
	return sample.Log(xs), sample.Log(ys)
}

func TestFitODRExactPowerLaw(t *testing.T) {
	logX, logY := logs([]float64{1, 2, 4, 8, 16, 32}, []float64{2, 4, 8, 16, 32, 64})

	res, err := newFitter().FitODR(context.Background(), logX, logY)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Exponent, 1e-9)
	assert.InDelta(t, 2.0, res.Prefactor, 1e-9)
	assert.InDelta(t, 1.0, res.R, 1e-12)
	assert.Equal(t, 6, res.N)
	assert.Equal(t, "linear", res.Form)
}

func TestFitOLSExactPowerLaw(t *testing.T) {
	xs, ys := testkit.Exact(10, 0.75, 3, 1, 1000)
	logX, logY := logs(xs, ys)

	res, err := newFitter().FitOLS(logX, logY)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.Exponent, 1e-12)
	assert.InDelta(t, 3.0, res.Prefactor, 1e-10)
	assert.InDelta(t, 1.0, res.R, 1e-12)
	assert.InDelta(t, 0.0, res.PValue, 1e-12)
	assert.InDelta(t, 0.0, res.StdErr, 1e-9)
	assert.Equal(t, 10, res.N)
}

func TestFitODRUnitExponentIsExactlyOne(t *testing.T) {
	config := testkit.DefaultPowerLawConfig()
	config.Exponent = 1.3
	config.LogNoiseY = 0.3
	g, err := testkit.NewPowerLawGenerator(context.Background(), rng.NewSeededAdapter(), config)
	require.NoError(t, err)
	logX, logY := logs(g.Generate())

	res, err := newFitter().FitODR(context.Background(), logX, logY, WithUnitExponent())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Exponent)
	assert.Equal(t, "slope_one", res.Form)

	// the optimal offset for slope one is the mean of logY - logX
	var offset float64
	for i := range logX {
		offset += logY[i] - logX[i]
	}
	offset /= float64(len(logX))
	assert.InEpsilon(t, math.Exp(offset), res.Prefactor, 1e-6)
}

func TestFitODRUnitExponentSinglePoint(t *testing.T) {
	res, err := newFitter().FitODR(context.Background(),
		[]float64{math.NaN(), math.Log(2)}, []float64{1, math.Log(10)}, UnitExponent(true))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Exponent)
	assert.InDelta(t, 5.0, res.Prefactor, 1e-9)
	assert.True(t, math.IsNaN(res.R))
}

func TestFitODRAgreesWithOLSWhenOnlyYIsNoisy(t *testing.T) {
	config := testkit.DefaultPowerLawConfig()
	config.N = 300
	config.LogNoiseY = 0.02
	g, err := testkit.NewPowerLawGenerator(context.Background(), rng.NewSeededAdapter(), config)
	require.NoError(t, err)
	logX, logY := logs(g.Generate())

	f := newFitter()
	ols, err := f.FitOLS(logX, logY)
	require.NoError(t, err)
	odrRes, err := f.FitODR(context.Background(), logX, logY)
	require.NoError(t, err)

	assert.InEpsilon(t, ols.Exponent, odrRes.Exponent, 0.01)
	assert.InEpsilon(t, ols.Prefactor, odrRes.Prefactor, 0.01)
}

// Recovery tightens as noise shrinks and the sample grows.
func TestFitODRRecoversParameters(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		noise     float64
		tolerance float64
	}{
		{"small noisy sample", 50, 0.3, 0.15},
		{"large noisy sample", 2000, 0.3, 0.03},
		{"large quiet sample", 2000, 0.01, 0.002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testkit.DefaultPowerLawConfig()
			config.N = tt.n
			config.Exponent = 0.67
			config.Prefactor = 4
			config.LogNoiseY = tt.noise
			config.LogNoiseX = tt.noise
			g, err := testkit.NewPowerLawGenerator(context.Background(), rng.NewSeededAdapter(), config)
			require.NoError(t, err)
			logX, logY := logs(g.Generate())

			res, err := newFitter().FitODR(context.Background(), logX, logY)
			require.NoError(t, err)
			assert.InDelta(t, 0.67, res.Exponent, tt.tolerance)
			assert.InDelta(t, math.Log(4), math.Log(res.Prefactor), 10*tt.tolerance)
		})
	}
}

func TestFitODRMasksNonFiniteRows(t *testing.T) {
	xs := []float64{1, 2, 0, 4, -3, 8, 16, 32}
	ys := []float64{2, 4, 7, 8, 5, 16, math.NaN(), 64}
	logX, logY := logs(xs, ys)

	dirty, err := newFitter().FitODR(context.Background(), logX, logY)
	require.NoError(t, err)

	cleanX, cleanY := logs([]float64{1, 2, 4, 8, 32}, []float64{2, 4, 8, 16, 64})
	clean, err := newFitter().FitODR(context.Background(), cleanX, cleanY)
	require.NoError(t, err)

	assert.Equal(t, clean.N, dirty.N)
	assert.InDelta(t, clean.Exponent, dirty.Exponent, 1e-12)
	assert.InDelta(t, clean.Prefactor, dirty.Prefactor, 1e-12)
}

func TestFitOLSKeepsInfinities(t *testing.T) {
	logX := []float64{0, 1, math.Inf(-1), 3}
	logY := []float64{0, 1, 2, 3}

	res, err := newFitter().FitOLS(logX, logY)
	require.NoError(t, err)
	assert.Equal(t, 4, res.N)
	assert.True(t, math.IsNaN(res.Exponent) || math.IsInf(res.Exponent, 0))
}

func TestFitODRConstantYGivesFlatFit(t *testing.T) {
	logX := []float64{0, 0.5, 1, 2, 3}
	logY := []float64{0.7, 0.7, 0.7, 0.7, 0.7}

	res, err := newFitter().FitODR(context.Background(), logX, logY)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Exponent, 1e-9)
	assert.InDelta(t, math.Exp(0.7), res.Prefactor, 1e-9)
	assert.True(t, math.IsNaN(res.R))
	assert.Equal(t, 5, res.N)

	res, err = newFitter().FitODR(context.Background(), logX, logY, WithUnitExponent())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Exponent)
	assert.True(t, math.IsNaN(res.R))
}

func TestFitInsufficientData(t *testing.T) {
	f := newFitter()
	ctx := context.Background()
	nan := math.NaN()

	_, err := f.FitODR(ctx, []float64{1, nan, math.Inf(1)}, []float64{1, 2, 3})
	var ide *core.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, "FitODR", ide.Op)
	assert.Equal(t, 1, ide.Valid)
	assert.Equal(t, 2, ide.Required)

	_, err = f.FitODR(ctx, []float64{nan}, []float64{1}, WithUnitExponent())
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 1, ide.Required)

	_, err = f.FitOLS([]float64{1, nan}, []float64{1, 2})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = f.FitODR(ctx, []float64{1, 1, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = f.FitOLS([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, core.ErrLengthMismatch)
}

type mockSolver struct {
	mock.Mock
}

func (m *mockSolver) Solve(ctx context.Context, form ports.FitForm, beta0, xs, ys []float64) (*ports.Solution, error) {
	args := m.Called(ctx, form, beta0, xs, ys)
	sol, _ := args.Get(0).(*ports.Solution)
	return sol, args.Error(1)
}

func TestFitODRWarmStartsFromOLS(t *testing.T) {
	logX := []float64{0, 1, 2, 3}
	logY := []float64{1, 3, 5, 7.5}
	solver := &mockSolver{}
	solver.On("Solve", mock.Anything, odr.Linear, mock.Anything, logX, logY).
		Return(&ports.Solution{Beta: []float64{2, 1}, Iterations: 3}, nil).Once()
	solver.On("Solve", mock.Anything, odr.SlopeOne, mock.Anything, logX, logY).
		Return(&ports.Solution{Beta: []float64{0.5}}, nil).Once()

	f := NewFitter(solver, nil)
	ols, err := f.FitOLS(logX, logY)
	require.NoError(t, err)

	res, err := f.FitODR(context.Background(), logX, logY)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)

	_, err = f.FitODR(context.Background(), logX, logY, WithUnitExponent())
	require.NoError(t, err)

	beta0 := solver.Calls[0].Arguments.Get(2).([]float64)
	assert.InDeltaSlice(t, []float64{ols.Exponent, math.Log(ols.Prefactor)}, beta0, 1e-12)
	beta0 = solver.Calls[1].Arguments.Get(2).([]float64)
	assert.InDeltaSlice(t, []float64{math.Log(ols.Prefactor)}, beta0, 1e-12)
	solver.AssertExpectations(t)
}

func TestFitODRSurfacesConvergenceError(t *testing.T) {
	solver := &mockSolver{}
	convErr := &core.ConvergenceError{Op: "odr solve", Iterations: 2000, Residual: 1.5, Status: "IterationLimit"}
	solver.On("Solve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, convErr)

	_, err := NewFitter(solver, nil).FitODR(context.Background(), []float64{0, 1, 2}, []float64{0, 1, 3})
	assert.True(t, errors.Is(err, core.ErrConvergence))

	var ce *core.ConvergenceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2000, ce.Iterations)
}

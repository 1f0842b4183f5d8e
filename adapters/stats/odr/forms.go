// Package odr fits models to paired data by orthogonal distance regression,
// minimizing squared errors in both x and y.
package odr

import (
	"gonum.org/v1/gonum/diff/fd"

	"powerfit/ports"
)

// ModelFunc evaluates a model y = f(beta, x).
type ModelFunc func(beta []float64, x float64) float64

// LinearModel is the two-parameter line beta[0]*x + beta[1].
var LinearModel ModelFunc = func(beta []float64, x float64) float64 {
	return beta[0]*x + beta[1]
}

// SlopeOneModel is the one-parameter line x + beta[0], slope fixed at 1.
var SlopeOneModel ModelFunc = func(beta []float64, x float64) float64 {
	return x + beta[0]
}

type linear struct{}

func (linear) Name() string                             { return "linear" }
func (linear) NumParams() int                           { return 2 }
func (linear) Eval(beta []float64, x float64) float64   { return LinearModel(beta, x) }
func (linear) DerivX(beta []float64, x float64) float64 { return beta[0] }
func (linear) DerivBeta(dst, beta []float64, x float64) {
	dst[0] = x
	dst[1] = 1
}

type slopeOne struct{}

func (slopeOne) Name() string                             { return "slope_one" }
func (slopeOne) NumParams() int                           { return 1 }
func (slopeOne) Eval(beta []float64, x float64) float64   { return SlopeOneModel(beta, x) }
func (slopeOne) DerivX(beta []float64, x float64) float64 { return 1 }
func (slopeOne) DerivBeta(dst, beta []float64, x float64) { dst[0] = 1 }

// The built-in forms carry analytic derivatives.
var (
	Linear   ports.FitForm = linear{}
	SlopeOne ports.FitForm = slopeOne{}
)

// FuncForm adapts an arbitrary ModelFunc to ports.FitForm, taking
// derivatives by central finite differences.
type FuncForm struct {
	name      string
	numParams int
	f         ModelFunc
	settings  *fd.Settings
}

// NewFuncForm wraps f, which must read exactly numParams entries of beta.
func NewFuncForm(name string, numParams int, f ModelFunc) *FuncForm {
	return &FuncForm{
		name:      name,
		numParams: numParams,
		f:         f,
		settings:  &fd.Settings{Formula: fd.Central},
	}
}

func (m *FuncForm) Name() string   { return m.name }
func (m *FuncForm) NumParams() int { return m.numParams }

func (m *FuncForm) Eval(beta []float64, x float64) float64 {
	return m.f(beta, x)
}

func (m *FuncForm) DerivX(beta []float64, x float64) float64 {
	return fd.Derivative(func(x float64) float64 { return m.f(beta, x) }, x, m.settings)
}

func (m *FuncForm) DerivBeta(dst, beta []float64, x float64) {
	fd.Gradient(dst, func(b []float64) float64 { return m.f(b, x) }, beta, m.settings)
}

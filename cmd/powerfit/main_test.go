package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"POWERFIT_FRACTION", "POWERFIT_ROUNDS", "POWERFIT_SEED", "POWERFIT_WORKERS",
		"POWERFIT_FAILURE_POLICY", "POWERFIT_CONFIDENCE", "POWERFIT_SOLVER_MAX_ITER",
		"POWERFIT_SOLVER_GRAD_TOL", "POWERFIT_SOLVER_FUNC_TOL", "POWERFIT_SOLVER_SSQ_TOL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (int, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, &stdout, &stderr
}

func TestFitCommand(t *testing.T) {
	clearEnv(t)

	code, stdout, stderr := execute(t, "fit", "--x", "1,2,4,8,16", "--y", "2,4,8,16,32")
	require.Equal(t, 0, code, stderr.String())

	var rep struct {
		Spearman struct{ R float64 }
		OLS      struct{ Exponent *float64 }
		ODR      struct {
			Exponent  float64
			Prefactor float64
			Form      string
			N         int
		}
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.InDelta(t, 1.0, rep.Spearman.R, 1e-12)
	require.NotNil(t, rep.OLS.Exponent)
	assert.InDelta(t, 1.0, *rep.OLS.Exponent, 1e-9)
	assert.InDelta(t, 1.0, rep.ODR.Exponent, 1e-6)
	assert.InDelta(t, 2.0, rep.ODR.Prefactor, 1e-6)
	assert.Equal(t, "linear", rep.ODR.Form)
	assert.Equal(t, 5, rep.ODR.N)
}

func TestFitCommandUnitExponent(t *testing.T) {
	clearEnv(t)

	code, stdout, stderr := execute(t, "fit", "--x", "1,2,4", "--y", "3,6,12", "--unit-exponent")
	require.Equal(t, 0, code, stderr.String())

	var rep struct {
		ODR struct {
			Exponent  float64
			Prefactor float64
			Form      string
		}
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, 1.0, rep.ODR.Exponent)
	assert.InDelta(t, 3.0, rep.ODR.Prefactor, 1e-6)
	assert.Equal(t, "slope_one", rep.ODR.Form)
}

func TestBootstrapCommand(t *testing.T) {
	clearEnv(t)

	code, stdout, stderr := execute(t, "bootstrap",
		"--x", "1,2,3,4,5,6,7,8,9,10",
		"--y", "2,8,18,32,50,72,98,128,162,200",
		"--rounds", "20", "--seed", "3", "--samples")
	require.Equal(t, 0, code, stderr.String())

	var rep struct {
		Summary struct {
			Exponent struct {
				Median float64
				Valid  int
			}
			PrefactorSigmaStar float64 `json:"prefactor_sigma_star"`
		}
		Distribution struct {
			Rounds     int
			SubsetSize int `json:"subset_size"`
			Exponents  []float64
		}
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.InDelta(t, 2.0, rep.Summary.Exponent.Median, 1e-6)
	assert.Equal(t, 20, rep.Summary.Exponent.Valid)
	assert.InDelta(t, 1.0, rep.Summary.PrefactorSigmaStar, 1e-6)
	assert.Equal(t, 20, rep.Distribution.Rounds)
	assert.Equal(t, 9, rep.Distribution.SubsetSize)
	assert.Len(t, rep.Distribution.Exponents, 20)
}

func TestSimulateCommand(t *testing.T) {
	clearEnv(t)

	code, stdout, stderr := execute(t, "simulate", "--n", "100", "--rounds", "10", "--exponent", "1.2")
	require.Equal(t, 0, code, stderr.String())

	var rep struct {
		Point struct{ Exponent float64 }
		Truth struct{ Exponent float64 }
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, 1.2, rep.Truth.Exponent)
	assert.InDelta(t, 1.2, rep.Point.Exponent, 0.05)
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		code int
	}{
		{"missing y", nil, []string{"fit", "--x", "1,2"}, 64},
		{"length mismatch", nil, []string{"fit", "--x", "1,2,3", "--y", "1,2"}, 64},
		{"too few valid rows", nil, []string{"fit", "--x", "1,-2,3", "--y", "1,2,-3"}, 65},
		{"bad fraction flag", nil, []string{"bootstrap", "--x", "1,2,3", "--y", "1,2,3", "--fraction", "2"}, 65},
		{"invalid config", map[string]string{"POWERFIT_ROUNDS": "0"}, []string{"fit"}, 78},
		{"unknown command", nil, []string{"plot"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			code, _, stderr := execute(t, tt.args...)
			assert.Equal(t, tt.code, code, stderr.String())
			assert.NotEmpty(t, stderr.String())
		})
	}
}

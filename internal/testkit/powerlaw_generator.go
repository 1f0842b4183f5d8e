package testkit

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"powerfit/domain/core"
	"powerfit/ports"
)

// streamName labels the generator's stream on the RNG port.
const streamName = "simulate"

// PowerLawGeneratorConfig configures synthetic y = prefactor * x^exponent data.
// x is log-uniform on [XMin, XMax]. LogNoiseY and LogNoiseX are standard
// deviations of Gaussian noise added to ln y and ln x, i.e. multiplicative
// noise on the linear scale.
type PowerLawGeneratorConfig struct {
	N         int     `json:"n"`
	Exponent  float64 `json:"exponent"`
	Prefactor float64 `json:"prefactor"`
	XMin      float64 `json:"x_min"`
	XMax      float64 `json:"x_max"`
	LogNoiseY float64 `json:"log_noise_y"`
	LogNoiseX float64 `json:"log_noise_x"`
	Seed      int64   `json:"seed"`
}

// DefaultPowerLawConfig returns sensible defaults for power-law data generation
func DefaultPowerLawConfig() PowerLawGeneratorConfig {
	return PowerLawGeneratorConfig{
		N:         200,
		Exponent:  0.75,
		Prefactor: 3.0,
		XMin:      1,
		XMax:      1e4,
		LogNoiseY: 0.1,
		Seed:      42,
	}
}

// PowerLawGenerator generates paired samples following a noisy power law
type PowerLawGenerator struct {
	config PowerLawGeneratorConfig
	logX   distuv.Uniform
	noiseY distuv.Normal
	noiseX distuv.Normal
}

// NewPowerLawGenerator creates a generator drawing from rng's "simulate"
// stream for config.Seed. The same config always yields the same sample.
func NewPowerLawGenerator(ctx context.Context, rng ports.RNGPort, config PowerLawGeneratorConfig) (*PowerLawGenerator, error) {
	const op = "power-law generator"
	if config.N < 1 {
		return nil, core.NewInvalidArgumentError(op, fmt.Sprintf("sample size must be positive, got %d", config.N))
	}
	if !(config.XMin > 0 && config.XMax > config.XMin) {
		return nil, core.NewInvalidArgumentError(op, fmt.Sprintf("x range must satisfy 0 < min < max, got [%g, %g]", config.XMin, config.XMax))
	}
	if config.Prefactor <= 0 {
		return nil, core.NewInvalidArgumentError(op, fmt.Sprintf("prefactor must be positive, got %g", config.Prefactor))
	}
	if config.LogNoiseY < 0 || config.LogNoiseX < 0 {
		return nil, core.NewInvalidArgumentError(op, "noise levels must be non-negative")
	}

	src, err := rng.SeededStream(ctx, streamName, config.Seed)
	if err != nil {
		return nil, err
	}
	return &PowerLawGenerator{
		config: config,
		logX:   distuv.Uniform{Min: math.Log(config.XMin), Max: math.Log(config.XMax), Src: src},
		noiseY: distuv.Normal{Mu: 0, Sigma: config.LogNoiseY, Src: src},
		noiseX: distuv.Normal{Mu: 0, Sigma: config.LogNoiseX, Src: src},
	}, nil
}

// Generate returns n (x, y) pairs on the linear scale.
func (g *PowerLawGenerator) Generate() (xs, ys []float64) {
	n := g.config.N
	xs = make([]float64, n)
	ys = make([]float64, n)
	logPrefactor := math.Log(g.config.Prefactor)
	for i := 0; i < n; i++ {
		lx := g.logX.Rand()
		ly := logPrefactor + g.config.Exponent*lx
		if g.config.LogNoiseY > 0 {
			ly += g.noiseY.Rand()
		}
		if g.config.LogNoiseX > 0 {
			lx += g.noiseX.Rand()
		}
		xs[i] = math.Exp(lx)
		ys[i] = math.Exp(ly)
	}
	return xs, ys
}

// Exact returns noiseless pairs at evenly spaced log-x positions.
func Exact(n int, exponent, prefactor, xMin, xMax float64) (xs, ys []float64) {
	xs = make([]float64, n)
	ys = make([]float64, n)
	lo, hi := math.Log(xMin), math.Log(xMax)
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		xs[i] = math.Exp(lo + t*(hi-lo))
		ys[i] = prefactor * math.Pow(xs[i], exponent)
	}
	return xs, ys
}

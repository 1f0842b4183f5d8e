package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"powerfit/domain/fit"
	"powerfit/internal"
	"powerfit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Bootstrap BootstrapConfig
	Solver    SolverConfig
	Summary   SummaryConfig
	LogLevel  internal.LogLevel
}

// BootstrapConfig holds resampling settings
type BootstrapConfig struct {
	Fraction float64
	Rounds   int
	Seed     int64
	Workers  int
	Policy   fit.FailurePolicy
}

// SolverConfig holds orthogonal distance solver limits
type SolverConfig struct {
	MaxIterations       int
	GradientThreshold   float64
	FunctionTolerance   float64
	SumSquaresTolerance float64
}

// SummaryConfig holds reporting settings
type SummaryConfig struct {
	Confidence float64
}

// Defaults returns the configuration used when no environment overrides are set.
func Defaults() *Config {
	return &Config{
		Bootstrap: BootstrapConfig{
			Fraction: 0.9,
			Rounds:   1000,
			Seed:     42,
			Workers:  runtime.GOMAXPROCS(0),
			Policy:   fit.AbortOnFailure,
		},
		Solver: SolverConfig{
			MaxIterations:       2000,
			GradientThreshold:   1e-10,
			FunctionTolerance:   1e-14,
			SumSquaresTolerance: 1.4901161193847656e-08,
		},
		Summary: SummaryConfig{
			Confidence: 0.95,
		},
		LogLevel: internal.LogLevelInfo,
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := Defaults()

	if err := loadBootstrapConfig(&config.Bootstrap); err != nil {
		return nil, errors.Wrap(err, "failed to load bootstrap configuration")
	}

	if err := loadSolverConfig(&config.Solver); err != nil {
		return nil, errors.Wrap(err, "failed to load solver configuration")
	}

	confidence, err := getEnvFloatOrDefault("POWERFIT_CONFIDENCE", config.Summary.Confidence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load summary configuration")
	}
	config.Summary.Confidence = confidence

	level, err := internal.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	config.LogLevel = level

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadBootstrapConfig(cfg *BootstrapConfig) error {
	var err error
	if cfg.Fraction, err = getEnvFloatOrDefault("POWERFIT_FRACTION", cfg.Fraction); err != nil {
		return err
	}
	if cfg.Rounds, err = getEnvIntOrDefault("POWERFIT_ROUNDS", cfg.Rounds); err != nil {
		return err
	}
	if cfg.Seed, err = getEnvInt64OrDefault("POWERFIT_SEED", cfg.Seed); err != nil {
		return err
	}
	if cfg.Workers, err = getEnvIntOrDefault("POWERFIT_WORKERS", cfg.Workers); err != nil {
		return err
	}
	policy, err := fit.ParseFailurePolicy(getEnvOrDefault("POWERFIT_FAILURE_POLICY", cfg.Policy.String()))
	if err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	cfg.Policy = policy
	return nil
}

func loadSolverConfig(cfg *SolverConfig) error {
	var err error
	if cfg.MaxIterations, err = getEnvIntOrDefault("POWERFIT_SOLVER_MAX_ITER", cfg.MaxIterations); err != nil {
		return err
	}
	if cfg.GradientThreshold, err = getEnvFloatOrDefault("POWERFIT_SOLVER_GRAD_TOL", cfg.GradientThreshold); err != nil {
		return err
	}
	if cfg.FunctionTolerance, err = getEnvFloatOrDefault("POWERFIT_SOLVER_FUNC_TOL", cfg.FunctionTolerance); err != nil {
		return err
	}
	if cfg.SumSquaresTolerance, err = getEnvFloatOrDefault("POWERFIT_SOLVER_SSQ_TOL", cfg.SumSquaresTolerance); err != nil {
		return err
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	b := c.Bootstrap
	if !(b.Fraction > 0 && b.Fraction <= 1) {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap fraction must be in (0, 1], got %g", b.Fraction))
	}
	if b.Rounds < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap rounds must be positive, got %d", b.Rounds))
	}
	if b.Workers < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("bootstrap workers must be positive, got %d", b.Workers))
	}

	s := c.Solver
	if s.MaxIterations < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("solver max iterations must be positive, got %d", s.MaxIterations))
	}
	if !(s.GradientThreshold > 0) || !(s.FunctionTolerance > 0) {
		return errors.ConfigInvalid(fmt.Sprintf("solver tolerances must be positive, got gradient %g, function %g", s.GradientThreshold, s.FunctionTolerance))
	}
	if !(s.SumSquaresTolerance > 0 && s.SumSquaresTolerance < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("solver sum of squares tolerance must be in (0, 1), got %g", s.SumSquaresTolerance))
	}

	if !(c.Summary.Confidence > 0 && c.Summary.Confidence < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("confidence level must be in (0, 1), got %g", c.Summary.Confidence))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a number, got %q", key, value))
		}
		return floatValue, nil
	}
	return defaultValue, nil
}

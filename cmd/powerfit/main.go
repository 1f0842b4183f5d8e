package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"powerfit/adapters/rng"
	"powerfit/adapters/stats/odr"
	"powerfit/adapters/stats/powerlaw"
	"powerfit/internal"
	"powerfit/internal/bootstrap"
	"powerfit/internal/config"
	"powerfit/internal/errors"
	"powerfit/ports"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errors.ExitCode(err)
	}

	rootCmd := newRootCmd(newApp(cfg, internal.NewLoggerTo(stderr, cfg.LogLevel), stdout))
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return errors.ExitCode(err)
	}
	return 0
}

// app holds the services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *internal.Logger
	rng       ports.RNGPort
	fitter    *powerlaw.Fitter
	estimator *bootstrap.Estimator
	out       io.Writer
}

func newApp(cfg *config.Config, logger *internal.Logger, out io.Writer) *app {
	solverCfg := odr.DefaultConfig()
	solverCfg.MaxIterations = cfg.Solver.MaxIterations
	solverCfg.GradientThreshold = cfg.Solver.GradientThreshold
	solverCfg.FunctionTolerance = cfg.Solver.FunctionTolerance
	solverCfg.SumSquaresTolerance = cfg.Solver.SumSquaresTolerance

	streams := rng.NewSeededAdapter()
	fitter := powerlaw.NewFitter(odr.NewSolver(solverCfg, logger), logger)
	return &app{
		cfg:       cfg,
		logger:    logger,
		rng:       streams,
		fitter:    fitter,
		estimator: bootstrap.NewEstimator(fitter, streams, logger),
		out:       out,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "powerfit",
		Short: "Power-law fitting with orthogonal distance regression and bootstrap intervals",
		Long: `powerfit fits y = prefactor * x^exponent on log-log data.

Defaults for bootstrap and solver settings are read from the environment
(POWERFIT_* and LOG_LEVEL) and an optional .env file. Results are written
to stdout as JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newFitCmd(a),
		newBootstrapCmd(a),
		newSimulateCmd(a),
	)
	return rootCmd
}

func (a *app) writeJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	return nil
}

package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"powerfit/adapters/stats/logspace"
	"powerfit/adapters/stats/powerlaw"
	"powerfit/domain/fit"
	"powerfit/domain/sample"
	"powerfit/internal/bootstrap"
	"powerfit/internal/errors"
	"powerfit/internal/summary"
	"powerfit/internal/testkit"
)

// fitReport is the output of the fit command.
type fitReport struct {
	Spearman fit.Correlation `json:"spearman"`
	Pearson  fit.Correlation `json:"pearson"`
	OLS      olsReport       `json:"ols"`
	ODR      odrReport       `json:"odr"`
}

// olsReport mirrors fit.OLSResult. Infinite logs are kept by the least
// squares mask, so any field may be non-finite and is then written as null.
type olsReport struct {
	Exponent  *float64 `json:"exponent"`
	Prefactor *float64 `json:"prefactor"`
	R         *float64 `json:"r"`
	PValue    *float64 `json:"p_value"`
	StdErr    *float64 `json:"stderr"`
	N         int      `json:"n"`
}

func newOLSReport(res fit.OLSResult) olsReport {
	return olsReport{
		Exponent:  number(res.Exponent),
		Prefactor: number(res.Prefactor),
		R:         number(res.R),
		PValue:    number(res.PValue),
		StdErr:    number(res.StdErr),
		N:         res.N,
	}
}

// number returns nil for NaN and infinities.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// odrReport mirrors fit.ODRResult with R nullable, since a constrained fit
// of constant data has no correlation.
type odrReport struct {
	Exponent   float64  `json:"exponent"`
	Prefactor  float64  `json:"prefactor"`
	R          *float64 `json:"r"`
	N          int      `json:"n"`
	Form       string   `json:"form"`
	Iterations int      `json:"iterations"`
	Residual   float64  `json:"residual"`
}

func newODRReport(res fit.ODRResult) odrReport {
	return odrReport{
		Exponent:   res.Exponent,
		Prefactor:  res.Prefactor,
		R:          number(res.R),
		N:          res.N,
		Form:       res.Form,
		Iterations: res.Iterations,
		Residual:   res.Residual,
	}
}

// bootstrapReport is the output of the bootstrap and simulate commands.
type bootstrapReport struct {
	Point        *odrReport         `json:"point,omitempty"`
	Summary      fit.Summary        `json:"summary"`
	Distribution *fit.Distribution  `json:"distribution,omitempty"`
	Truth        *simulationSetting `json:"truth,omitempty"`
}

type simulationSetting struct {
	Exponent  float64 `json:"exponent"`
	Prefactor float64 `json:"prefactor"`
	N         int     `json:"n"`
	Seed      int64   `json:"seed"`
}

func checkSample(xs, ys []float64) error {
	if len(xs) == 0 {
		return errors.InvalidInput("--x and --y are required")
	}
	if len(xs) != len(ys) {
		return errors.InvalidInput(fmt.Sprintf("--x has %d values, --y has %d", len(xs), len(ys)))
	}
	return nil
}

func newFitCmd(a *app) *cobra.Command {
	var xs, ys []float64
	var unitExponent bool

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a power law by least squares and orthogonal distance regression",
		Long: `Fit y = prefactor * x^exponent to paired samples.

Reports Spearman and Pearson correlations of the log data, the least squares
fit and the orthogonal distance fit. Rows with non-positive or missing values
are dropped.

Example: powerfit fit --x 1,2,4,8 --y 2,4,8,16 --unit-exponent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSample(xs, ys); err != nil {
				return err
			}
			logX, logY := sample.Log(xs), sample.Log(ys)

			var rep fitReport
			var err error
			if rep.Spearman, err = logspace.MaskedRankCorrelation(logX, logY); err != nil {
				return errors.Wrap(err, "spearman correlation failed")
			}
			if rep.Pearson, err = logspace.MaskedLinearCorrelation(logX, logY); err != nil {
				return errors.Wrap(err, "pearson correlation failed")
			}
			ols, err := a.fitter.FitOLS(logX, logY)
			if err != nil {
				return errors.Wrap(err, "least squares fit failed")
			}
			rep.OLS = newOLSReport(ols)
			res, err := a.fitter.FitODR(cmd.Context(), logX, logY, powerlaw.UnitExponent(unitExponent))
			if err != nil {
				return errors.Wrap(err, "orthogonal distance fit failed")
			}
			rep.ODR = newODRReport(res)
			return a.writeJSON(rep)
		},
	}

	cmd.Flags().Float64SliceVar(&xs, "x", nil, "Comma-separated x values")
	cmd.Flags().Float64SliceVar(&ys, "y", nil, "Comma-separated y values")
	cmd.Flags().BoolVar(&unitExponent, "unit-exponent", false, "Fix the exponent at 1 and fit only the prefactor")
	return cmd
}

// bootstrapFlags binds the resampling flags shared by bootstrap and simulate.
type bootstrapFlags struct {
	opts        bootstrap.Options
	skip        bool
	level       float64
	withSamples bool
}

func (f *bootstrapFlags) register(cmd *cobra.Command, a *app) {
	b := a.cfg.Bootstrap
	cmd.Flags().Float64Var(&f.opts.Fraction, "fraction", b.Fraction, "Fraction of valid rows drawn per round")
	cmd.Flags().IntVar(&f.opts.Rounds, "rounds", b.Rounds, "Number of bootstrap rounds")
	cmd.Flags().Int64Var(&f.opts.Seed, "seed", b.Seed, "Random seed for deterministic resampling")
	cmd.Flags().IntVar(&f.opts.Workers, "workers", b.Workers, "Rounds fitted concurrently")
	cmd.Flags().BoolVar(&f.skip, "skip-failures", b.Policy == fit.SkipFailures, "Record failed rounds as NaN instead of aborting")
	cmd.Flags().Float64Var(&f.level, "level", a.cfg.Summary.Confidence, "Central interval level of the summary")
	cmd.Flags().BoolVar(&f.withSamples, "samples", false, "Include every round's estimates in the output")
}

func (f *bootstrapFlags) options() bootstrap.Options {
	opts := f.opts
	opts.Policy = fit.AbortOnFailure
	if f.skip {
		opts.Policy = fit.SkipFailures
	}
	return opts
}

func (a *app) runBootstrap(cmd *cobra.Command, xs, ys []float64, f *bootstrapFlags) (*bootstrapReport, error) {
	dist, err := a.estimator.Run(cmd.Context(), xs, ys, f.options())
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap failed")
	}
	sum, err := summary.Summarize(dist, f.level)
	if err != nil {
		return nil, errors.Wrap(err, "summary failed")
	}

	rep := &bootstrapReport{Summary: sum}
	if f.withSamples {
		rep.Distribution = dist
	}
	return rep, nil
}

func newBootstrapCmd(a *app) *cobra.Command {
	var xs, ys []float64
	var flags bootstrapFlags

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Estimate power-law parameter intervals by bootstrap resampling",
		Long: `Resample the data with replacement, refit each resample by orthogonal
distance regression and summarize the exponent, prefactor and correlation.

Example: powerfit bootstrap --x 1,2,3,4,5 --y 3.1,5.9,9.2,11.8,15.3 --rounds 500 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSample(xs, ys); err != nil {
				return err
			}
			rep, err := a.runBootstrap(cmd, xs, ys, &flags)
			if err != nil {
				return err
			}
			return a.writeJSON(rep)
		},
	}

	cmd.Flags().Float64SliceVar(&xs, "x", nil, "Comma-separated x values")
	cmd.Flags().Float64SliceVar(&ys, "y", nil, "Comma-separated y values")
	flags.register(cmd, a)
	return cmd
}

func newSimulateCmd(a *app) *cobra.Command {
	var flags bootstrapFlags
	gen := testkit.DefaultPowerLawConfig()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fit and bootstrap a synthetic power-law sample",
		Long: `Draw a synthetic sample with log-normal scatter around a known power law,
fit it and bootstrap it, so the recovered intervals can be compared with the
true parameters.

Example: powerfit simulate --exponent 0.75 --prefactor 3 --noise 0.2 --n 300 --rounds 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := testkit.NewPowerLawGenerator(cmd.Context(), a.rng, gen)
			if err != nil {
				return errors.Wrap(err, "invalid simulation settings")
			}
			xs, ys := g.Generate()
			a.logger.Debug("simulated %d points, exponent %g, prefactor %g", len(xs), gen.Exponent, gen.Prefactor)

			point, err := a.fitter.FitODR(cmd.Context(), sample.Log(xs), sample.Log(ys))
			if err != nil {
				return errors.Wrap(err, "orthogonal distance fit failed")
			}
			rep, err := a.runBootstrap(cmd, xs, ys, &flags)
			if err != nil {
				return err
			}
			pr := newODRReport(point)
			rep.Point = &pr
			rep.Truth = &simulationSetting{Exponent: gen.Exponent, Prefactor: gen.Prefactor, N: gen.N, Seed: gen.Seed}
			return a.writeJSON(rep)
		},
	}

	cmd.Flags().Float64Var(&gen.Exponent, "exponent", gen.Exponent, "True exponent")
	cmd.Flags().Float64Var(&gen.Prefactor, "prefactor", gen.Prefactor, "True prefactor")
	cmd.Flags().Float64Var(&gen.LogNoiseY, "noise", gen.LogNoiseY, "Standard deviation of log y scatter")
	cmd.Flags().Float64Var(&gen.LogNoiseX, "noise-x", gen.LogNoiseX, "Standard deviation of log x scatter")
	cmd.Flags().IntVar(&gen.N, "n", gen.N, "Number of points")
	cmd.Flags().Int64Var(&gen.Seed, "data-seed", gen.Seed, "Random seed for the synthetic sample")
	flags.register(cmd, a)
	return cmd
}

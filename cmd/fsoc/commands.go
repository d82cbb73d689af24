package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/fsoc-linkbudget/core"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/logging"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/observability"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "fsoc",
		Short: "Free-space optical link budget and BER estimation",
		Long: `fsoc evaluates free-space optical links against a component catalog:
power budget ledger, pre/post-FEC bit error rate, BER-limited reach,
pointing control requirements and orbital pass availability.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML run file")
	pf.StringVar(&opts.catalogPath, "catalog", "", "JSON component catalog (default: embedded catalog)")
	pf.StringToStringVar(&opts.selections, "select", nil, "component selection overrides, category=id")
	pf.Float64Var(&opts.distanceM, "distance", -1, "link distance in meters (overrides the run file)")
	pf.Float64Var(&opts.bitrateGbps, "bitrate", 0, "bitrate in Gb/s (overrides the run file)")
	pf.BoolVar(&opts.jsonOut, "json", false, "write JSON instead of tables")

	root.AddCommand(
		newEvaluateCmd(opts),
		newReachCmd(opts),
		newControlCmd(opts),
		newSweepCmd(opts),
		newPassCmd(opts),
		newCatalogCmd(opts),
	)
	return root
}

// runWithApp wires an app for one command and tears it down afterwards.
func runWithApp(opts *rootOptions, fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		a, err := newApp(ctx, opts, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close(ctx)
		return fn(cmd, a)
	}
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the link budget and BER at the configured distance",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			report, err := a.svc.Evaluate(ctx, a.file.Link)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(out, report)
			}
			return renderReport(out, report)
		}),
	}
}

func newReachCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reach",
		Short: "Solve for the longest distance meeting the target BER",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			res, err := a.svc.MaxReach(ctx, a.file.Link)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(out, res)
			}
			return renderReach(out, res)
		}),
	}
}

func newControlCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "control",
		Short: "Estimate pointing control requirements at the configured distance",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			report, err := a.svc.Evaluate(ctx, a.file.Link)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(out, report.Control)
			}
			return renderControl(out, report.Control, report.KPIs)
		}),
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var (
		from, to float64
		steps    int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate the link over a range of distances",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			r := a.file.Reach
			if from >= 0 {
				r.SweepFromM = from
			}
			if to > 0 {
				r.SweepToM = to
			}
			if steps > 0 {
				r.SweepSteps = steps
			}
			if r.SweepToM <= r.SweepFromM {
				return fmt.Errorf("%w: sweep range [%v, %v] is empty", core.ErrInvalidRequest, r.SweepFromM, r.SweepToM)
			}
			points, err := a.svc.Sweep(ctx, a.file.Link, core.LinearDistances(r.SweepFromM, r.SweepToM, r.SweepSteps))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(out, points)
			}
			return renderSweep(out, points)
		}),
	}
	cmd.Flags().Float64Var(&from, "from", -1, "first distance in meters")
	cmd.Flags().Float64Var(&to, "to", 0, "last distance in meters")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of intervals between from and to")
	return cmd
}

func newPassCmd(opts *rootOptions) *cobra.Command {
	var (
		tle1, tle2  string
		lat, lon    float64
		alt         float64
		minElev     float64
		duration    time.Duration
		step        time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "pass",
		Short: "Evaluate link availability along a satellite pass",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			pc := a.file.Pass
			if tle1 != "" || tle2 != "" {
				pc.TLE = []string{tle1, tle2}
			}
			if len(pc.TLE) != 2 {
				return fmt.Errorf("%w: a pass needs both TLE lines (--tle1/--tle2 or pass.tle)", core.ErrInvalidRequest)
			}
			flags := cmd.Flags()
			if flags.Changed("lat") {
				pc.Ground.LatitudeDeg = lat
			}
			if flags.Changed("lon") {
				pc.Ground.LongitudeDeg = lon
			}
			if flags.Changed("alt") {
				pc.Ground.AltitudeM = alt
			}
			if flags.Changed("min-elevation") {
				pc.MinElevationDeg = minElev
			}
			if duration > 0 {
				pc.Duration = duration
			}
			if step > 0 {
				pc.Step = step
			}
			if metricsAddr == "" {
				metricsAddr = a.file.Metrics.Addr
			}

			passMetrics, err := observability.NewPassCollector(a.registry)
			if err != nil {
				return err
			}
			stopMetrics := serveMetrics(ctx, metricsAddr, a.collector.Handler(), a.log)
			defer stopMetrics()

			res, err := a.svc.Pass(ctx, a.file.Link, core.PassRequest{
				TLELine1:        pc.TLE[0],
				TLELine2:        pc.TLE[1],
				Ground:          pc.Ground,
				MinElevationDeg: pc.MinElevationDeg,
				Start:           pc.Start,
				Duration:        pc.Duration,
				Step:            pc.Step,
				Observer:        passMetrics,
			})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(out, res)
			}
			return renderPass(out, res)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&tle1, "tle1", "", "TLE line 1")
	f.StringVar(&tle2, "tle2", "", "TLE line 2")
	f.Float64Var(&lat, "lat", 0, "ground terminal latitude in degrees")
	f.Float64Var(&lon, "lon", 0, "ground terminal longitude in degrees")
	f.Float64Var(&alt, "alt", 0, "ground terminal altitude in meters")
	f.Float64Var(&minElev, "min-elevation", 0, "minimum elevation in degrees")
	f.DurationVar(&duration, "duration", 0, "pass window length")
	f.DurationVar(&step, "step", 0, "sampling step")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the pass runs")
	return cmd
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List catalog categories, records and the current selection",
		Args:  cobra.NoArgs,
		RunE: runWithApp(opts, func(cmd *cobra.Command, a *app) error {
			out := cmd.OutOrStdout()
			if category == "" {
				return renderCatalog(out, a.catalog, a.summary, opts.jsonOut)
			}
			return renderCategory(out, a.catalog, strings.ToLower(strings.TrimSpace(category)), opts.jsonOut)
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "list the records of one category")
	return cmd
}

// serveMetrics exposes handler on addr until the returned stop func runs.
// An empty addr serves nothing.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, log logging.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info(ctx, "metrics endpoint listening", logging.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server failed", logging.Err(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"healthbench/internal/collector"
	"healthbench/internal/config"
	"healthbench/internal/coordinator"
	"healthbench/internal/logging"
	"healthbench/internal/progress"
	"healthbench/internal/submit"
	"healthbench/internal/workload"
)

type runOptions struct {
	configPath  string
	output      string
	logLevel    string
	metricsAddr string
	quiet       bool
	verbose     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every round in a config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to YAML config file (required)")
	flags.StringVar(&opts.output, "output", "text",
		"Output format: text, json, csv")
	flags.StringVar(&opts.logLevel, "log-level", "",
		"Override log.level from the config file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (overrides metrics.listen)")
	flags.BoolVar(&opts.quiet, "quiet", false,
		"Suppress progress output during the run")
	flags.BoolVar(&opts.verbose, "verbose", false,
		"Dump gateway requests and responses to stderr")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runBenchmark(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	switch opts.output {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("--output must be text, json or csv, got %q", opts.output)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Listen = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewWithOutput(cfg.Log, stderr)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger.AddHook(&logging.FieldsHook{Fields: logrus.Fields{"run": runID}})

	reg := prometheus.NewRegistry()
	instruments, err := collector.NewInstruments(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	envelopes := stdout
	if stdoutIsDryRun(cfg) && opts.output != "text" {
		envelopes = stderr
	}
	submitter, err := submit.New(cfg.Submitter, logger, submit.Options{
		Verbose: opts.verbose,
		Debug:   stderr,
		Stdout:  envelopes,
	})
	if err != nil {
		return err
	}
	defer submitter.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitReady(ctx, submitter, cfg.Submitter, logger); err != nil {
		return err
	}

	coll := collector.NewCollector(collector.WithInstruments(instruments))
	prog := progress.NewProgress(coll, opts.quiet)
	prog.SetOutput(stderr)
	coord := coordinator.NewCoordinator(coll, workload.DefaultRegistry(), submitter, logger,
		coordinator.WithProgress(prog),
		coordinator.WithPause(cfg.Pause))

	rounds := cfg.Expand()
	prog.Printf("Healthbench starting: %d rounds, submitter %s, run %s", len(rounds), cfg.Submitter.Type, runID)

	// runCtx ends the metrics server once the rounds are done.
	runCtx, finish := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:    cfg.Metrics.Listen,
			Handler: metricsHandler(reg),
		}
		g.Go(func() error {
			logger.WithField("addr", cfg.Metrics.Listen).Info("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var runErr error
	g.Go(func() error {
		defer finish()
		prog.Start()
		_, runErr = coord.Run(gctx, rounds)
		prog.Stop()
		return nil
	})

	groupErr := g.Wait()
	finish()
	coll.Close()

	interrupted := ctx.Err() != nil
	if interrupted && !opts.quiet {
		fmt.Fprintln(stderr, "\nReceived interrupt signal, shutting down...")
	}

	rep := &collector.Report{
		RunID:    runID,
		Name:     cfg.Name,
		Duration: coll.Duration(),
		Rounds:   coll.Results(),
		Dropped:  coll.DroppedEvents(),
	}
	if err := writeReport(stdout, opts.output, rep); err != nil {
		return err
	}

	if groupErr != nil {
		return groupErr
	}
	if runErr != nil && !interrupted {
		return runErr
	}
	return nil
}

// waitReady checks that the target answers before the first round, for
// transports that can tell.
func waitReady(ctx context.Context, s submit.Submitter, cfg config.SubmitterConfig, logger *logrus.Logger) error {
	hc, ok := s.(submit.HealthChecker)
	if !ok || cfg.Health.Disabled {
		return nil
	}
	return submit.WaitReady(ctx, hc, cfg.Health, logger.WithField("submitter", cfg.Type))
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func writeReport(w io.Writer, format string, rep *collector.Report) error {
	switch format {
	case "json":
		collector.FormatJSON(w, rep)
	case "csv":
		return collector.FormatCSV(w, rep)
	default:
		collector.FormatText(w, rep)
	}
	return nil
}

// stdoutIsDryRun reports whether the dryrun submitter would write its
// envelopes to stdout. They are moved to stderr when the report must stay
// machine-readable.
func stdoutIsDryRun(cfg *config.Config) bool {
	return cfg.Submitter.Type == config.SubmitterDryRun && cfg.Submitter.DryRun.Path == ""
}

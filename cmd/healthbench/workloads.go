package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"healthbench/internal/submit"
	"healthbench/internal/workload"
)

func newWorkloadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workloads",
		Short: "List registered workload names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range workload.DefaultRegistry().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

type sampleOptions struct {
	workload    string
	worker      int
	workers     int
	count       int
	nodeAddress string
}

func newSampleCmd() *cobra.Command {
	var opts sampleOptions

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print requests a workload would send, as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSample(cmd.Context(), opts, submit.NewDryRun(cmd.OutOrStdout()))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.workload, "workload", workload.VerbReportStatus,
		"Workload to sample")
	flags.IntVar(&opts.worker, "worker", 0,
		"Worker index the module is built for")
	flags.IntVar(&opts.workers, "workers", 1,
		"Total workers in the simulated round")
	flags.IntVar(&opts.count, "count", 3,
		"Number of requests to print")
	flags.StringVar(&opts.nodeAddress, "node-address", "",
		"Node address for getLatestStatus (default: the fixed monitor node)")

	return cmd
}

func runSample(ctx context.Context, opts sampleOptions, sub workload.Submitter) error {
	if opts.count < 1 {
		return fmt.Errorf("--count must be >= 1, got %d", opts.count)
	}
	if opts.worker < 0 || opts.worker >= opts.workers {
		return fmt.Errorf("--worker must be in [0, %d), got %d", opts.workers, opts.worker)
	}

	factory, err := workload.DefaultRegistry().Lookup(opts.workload)
	if err != nil {
		return err
	}

	init := workload.Init{
		WorkerIndex:  opts.worker,
		TotalWorkers: opts.workers,
		Submitter:    sub,
	}
	if opts.nodeAddress != "" {
		init.Arguments = map[string]any{"nodeAddress": opts.nodeAddress}
	}

	module, err := factory(init)
	if err != nil {
		return err
	}
	for i := 0; i < opts.count; i++ {
		if err := module.SubmitTransaction(ctx); err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
	}
	return nil
}

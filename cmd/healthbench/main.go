// Command healthbench drives reportStatus and getLatestStatus load against a
// NodeHealthMonitor deployment and prints Caliper-style round results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 2
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "healthbench",
		Short: "Workload generator for the NodeHealthMonitor contract",
		Long: `Healthbench runs rounds of reportStatus writes and getLatestStatus
reads against a NodeHealthMonitor deployment through a gateway, a Kafka topic
or a dry-run writer, and reports send rate, latency and throughput per round.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newWorkloadsCmd())
	root.AddCommand(newSampleCmd())

	return root
}

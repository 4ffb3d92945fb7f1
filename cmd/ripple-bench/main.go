// ripple-bench drives a synthetic reactive graph through the ripple runtime
// and reports write and effect-run throughput. While a run is
// active it serves Prometheus metrics and a live websocket stats stream, so
// the runtime can be watched from the outside.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ripple-bench",
		Short: "Benchmark and observe the ripple reactivity runtime",
		Long: `ripple-bench exercises the ripple runtime with synthetic reactive
graphs: layered effect chains, derived collections, and write storms.

While running it exposes:

  • /metrics  - Prometheus counters from the runtime's introspection stream
  • /events   - live per-second stats over websocket
  • a JSON report on completion`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ripple-bench %s (%s)\n", version, commit)
		},
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// exitHardFailure is distinct from the severity codes 0-2 so automation can
// tell "analysis found severe drift" apart from "analysis never ran".
const exitHardFailure = 3

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "specdrift",
	Short: "Detect drift between documentation and implementation",
	Long: `specdrift cross-references checklist documentation (test cases,
features, requirements) with test code across multiple languages and reports
where the two disagree.

The exit code is the severity classification: 0 (ok), 1 (moderate drift),
2 (severe drift). Exit code 3 means the analysis could not run at all.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitHardFailure)
	}
}

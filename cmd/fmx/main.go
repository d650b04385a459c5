package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/damian-dev1/freight-matrix-hn/cmd/fmx/commands"
	"github.com/damian-dev1/freight-matrix-hn/logger"
)

var jsonLogs bool

var rootCmd = &cobra.Command{
	Use:   "fmx",
	Short: "fmx - freight matrix ingest engine",
	Long: `fmx - vendor freight record ingestion and delivery.

fmx validates, normalizes, and deduplicates vendor record batches, tracks
each batch as a run on a durable ledger, and ships accepted documents to the
destination store via the external delivery tool. Failed runs can be redriven
up to their retry limit.

Available commands:
  ingest   - Validate and deliver one source file
  runs     - List runs on the ledger
  retry    - Redrive failed runs
  profiles - List vendor profiles
  version  - Show version information

Examples:
  fmx ingest pricing.csv --vendor acme   # Process one batch
  fmx runs --status failed               # Show failed runs
  fmx retry --all                        # Redrive all eligible failed runs`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.IngestCmd)
	rootCmd.AddCommand(commands.RunsCmd)
	rootCmd.AddCommand(commands.RetryCmd)
	rootCmd.AddCommand(commands.ProfilesCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

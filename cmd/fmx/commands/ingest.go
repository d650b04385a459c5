package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
)

// IngestCmd processes one source file end to end.
var IngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Validate and deliver one source file",
	Long: `Run the full ingest pipeline for one source file: resolve the vendor
profile, validate and deduplicate the records, record the run on the ledger,
and deliver the accepted documents.

Supported formats: .csv, .json (array of objects), .ndjson

Examples:
  fmx ingest pricing.csv --vendor acme
  fmx ingest feed.ndjson --vendor northwind`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendorID, _ := cmd.Flags().GetString("vendor")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, conn, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		run, err := engine.ProcessFile(cmd.Context(), args[0], vendorID)
		if err != nil {
			return err
		}

		printRunSummary(run)
		return nil
	},
}

func init() {
	IngestCmd.Flags().String("vendor", "", "Vendor id owning this batch (required)")
	IngestCmd.MarkFlagRequired("vendor")
}

func printRunSummary(run *ledger.Run) {
	pterm.DefaultSection.Printf("Run %d (%s)", run.ID, run.Status)

	data := pterm.TableData{
		{"Vendor", run.VendorID},
		{"Source", run.SourceName},
		{"Rows total", pterm.Sprintf("%d", run.RowsTotal)},
		{"Rows valid", pterm.Sprintf("%d", run.RowsValid)},
		{"Rows invalid", pterm.Sprintf("%d", run.RowsInvalid)},
		{"Duplicates", pterm.Sprintf("%d", run.Duplicates)},
		{"Unique SKUs", pterm.Sprintf("%d", run.UniqueKeys)},
		{"Rows delivered", pterm.Sprintf("%d", run.RowsDelivered)},
	}
	pterm.DefaultTable.WithData(data).Render()

	switch run.Status {
	case ledger.StatusSucceeded:
		pterm.Success.Printf("Delivered %d documents\n", run.RowsDelivered)
	case ledger.StatusFailed:
		pterm.Error.Printf("Delivery failed: %s\n", run.ErrorMessage)
		pterm.Info.Printf("Redrive with: fmx retry %d\n", run.ID)
	}
}

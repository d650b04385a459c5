package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
)

// RunsCmd lists runs on the ledger.
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs on the ledger",
	Long: `List ingest runs, newest first, optionally filtered.

Status filters: pending, retrying, succeeded, failed

Examples:
  fmx runs                      # Most recent runs
  fmx runs --status failed      # Only failed runs
  fmx runs --vendor acme        # One vendor's runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		vendorID, _ := cmd.Flags().GetString("vendor")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		conn, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		store := ledger.NewStore(conn)

		var status *ledger.Status
		if statusFilter != "" {
			s := ledger.Status(statusFilter)
			status = &s
		}

		runs, err := store.ListRuns(status, vendorID, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			pterm.Info.Println("No runs found")
			return nil
		}

		data := pterm.TableData{
			{"ID", "Vendor", "Source", "Status", "Total", "Valid", "Invalid", "Dupes", "Delivered", "Retries", "Error"},
		}
		for _, run := range runs {
			data = append(data, []string{
				pterm.Sprintf("%d", run.ID),
				run.VendorID,
				run.SourceName,
				string(run.Status),
				pterm.Sprintf("%d", run.RowsTotal),
				pterm.Sprintf("%d", run.RowsValid),
				pterm.Sprintf("%d", run.RowsInvalid),
				pterm.Sprintf("%d", run.Duplicates),
				pterm.Sprintf("%d", run.RowsDelivered),
				pterm.Sprintf("%d/%d", run.RetryCount, run.MaxRetries),
				clip(run.ErrorMessage, 40),
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}

		counts, err := store.StatusCounts()
		if err != nil {
			return err
		}
		pterm.Info.Printf("pending=%d retrying=%d succeeded=%d failed=%d\n",
			counts[ledger.StatusPending], counts[ledger.StatusRetrying],
			counts[ledger.StatusSucceeded], counts[ledger.StatusFailed])
		return nil
	},
}

func init() {
	RunsCmd.Flags().String("status", "", "Filter by status")
	RunsCmd.Flags().String("vendor", "", "Filter by vendor id")
	RunsCmd.Flags().Int("limit", 20, "Maximum runs to show (0 = all)")
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package commands

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/logger"
	"github.com/damian-dev1/freight-matrix-hn/retry"
)

// RetryCmd redrives failed runs through the retry coordinator.
var RetryCmd = &cobra.Command{
	Use:   "retry [run-id...]",
	Short: "Redrive failed runs",
	Long: `Queue failed runs for another delivery attempt and drain the queue.

Runs that are not failed, or that have exhausted their retries, are skipped
silently so a mixed batch of ids never errors.

Examples:
  fmx retry 42            # Redrive one run
  fmx retry 42 43 44      # Redrive several runs
  fmx retry --all         # Redrive every eligible failed run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("provide run ids or --all")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		engine, conn, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		coordinator := retry.NewCoordinator(
			cmd.Context(),
			engine.Runs,
			engine.Materializer,
			engine.Sink,
			engine.ResolveTarget,
			cfg.Retry.QueueSize,
			cfg.Retry.AttemptsPerMinute,
			logger.Logger,
		)

		enqueued := 0
		if all {
			enqueued, err = coordinator.EnqueueAllFailed()
			if err != nil && !errors.Is(err, errors.ErrQueueFull) {
				return err
			}
		} else {
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return errors.NewInvalidRequestError("invalid run id %q", arg)
				}
				if err := coordinator.Enqueue(id); err != nil {
					return err
				}
				enqueued++
			}
		}

		if enqueued == 0 {
			pterm.Info.Println("No eligible runs to retry")
			return nil
		}
		pterm.Info.Printf("Queued %d run(s) for retry\n", enqueued)

		coordinator.Start()
		defer coordinator.Stop()

		// Drain: the worker is sequential, so depth reaching zero means
		// every queued attempt has finished
		for coordinator.QueueDepth() > 0 {
			time.Sleep(100 * time.Millisecond)
		}

		pterm.Success.Println("Retry queue drained")
		return nil
	},
}

func init() {
	RetryCmd.Flags().Bool("all", false, "Redrive every eligible failed run")
}

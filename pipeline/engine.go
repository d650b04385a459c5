// Package pipeline orchestrates one ingest run end to end: resolve the
// vendor profile, read the source batch, run the validation pass, record the
// run on the ledger, materialize the payload, and invoke delivery.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/delivery"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ingest"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
	"github.com/damian-dev1/freight-matrix-hn/payload"
	"github.com/damian-dev1/freight-matrix-hn/profile"
	"github.com/damian-dev1/freight-matrix-hn/source"
)

// Engine wires the ingest components for one deployment.
type Engine struct {
	Profiles     *profile.Store
	Runs         *ledger.Store
	Materializer *payload.Materializer
	Sink         delivery.Sink

	DeliveryCfg config.DeliveryConfig
	MaxRetries  int

	logger *zap.SugaredLogger
}

// NewEngine creates an engine. maxRetries <= 0 falls back to the ledger
// default.
func NewEngine(
	profiles *profile.Store,
	runs *ledger.Store,
	materializer *payload.Materializer,
	sink delivery.Sink,
	deliveryCfg config.DeliveryConfig,
	maxRetries int,
	logger *zap.SugaredLogger,
) *Engine {
	if maxRetries <= 0 {
		maxRetries = ledger.DefaultMaxRetries
	}
	return &Engine{
		Profiles:     profiles,
		Runs:         runs,
		Materializer: materializer,
		Sink:         sink,
		DeliveryCfg:  deliveryCfg,
		MaxRetries:   maxRetries,
		logger:       logger.Named("pipeline"),
	}
}

// ProcessFile runs the full pipeline for one source file. Row-level failures
// are counted on the run, and a delivery failure produces a failed run; in
// both cases the run is returned with a nil error. A non-nil error means the
// run could not be processed at all (unreadable source, ledger failure).
func (e *Engine) ProcessFile(ctx context.Context, path, vendorID string) (*ledger.Run, error) {
	p, err := e.Profiles.Resolve(vendorID)
	if err != nil {
		return nil, err
	}

	batch, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}

	run := ledger.NewRun(vendorID, p.Name, batch.Name)
	run.MaxRetries = e.MaxRetries
	if err := e.Runs.CreateRun(run); err != nil {
		return nil, err
	}

	res := ingest.Pass(p, batch.Records)
	run.SetStats(res.Stats)

	e.logger.Infow("Validation pass complete",
		"run_id", run.ID,
		"vendor_id", vendorID,
		"source", batch.Name,
		"rows_total", res.Stats.RowsTotal,
		"rows_valid", res.Stats.RowsValid,
		"rows_invalid", res.Stats.RowsInvalid,
		"duplicates", res.Stats.Duplicates,
	)

	// Persist counters and audit rows before attempting delivery so a crash
	// mid-delivery keeps the run's accounting intact
	if err := e.Runs.InsertAcceptedRows(run.ID, res.Documents); err != nil {
		return nil, err
	}
	if err := e.Runs.UpdateRun(run); err != nil {
		return nil, err
	}

	if res.Stats.RowsValid == 0 {
		run.MarkFailed("no valid rows to deliver")
		if err := e.Runs.UpdateRun(run); err != nil {
			return nil, err
		}
		return run, nil
	}

	payloadPath, err := e.Materializer.Materialize(run.ID, res.Documents)
	if err != nil {
		run.MarkFailed(err.Error())
		if uerr := e.Runs.UpdateRun(run); uerr != nil {
			return nil, uerr
		}
		return run, nil
	}

	if err := e.Sink.Deliver(ctx, payloadPath, TargetFor(p, e.DeliveryCfg)); err != nil {
		run.MarkFailed(err.Error())
		e.logger.Warnw("Delivery failed", "run_id", run.ID, "error", err)
	} else {
		run.MarkSucceeded()
		e.logger.Infow("Delivery succeeded",
			"run_id", run.ID,
			"rows_delivered", run.RowsDelivered,
		)
	}

	if err := e.Runs.UpdateRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

// ResolveTarget maps a run back to its delivery target via the vendor
// profile. Used by the retry coordinator.
func (e *Engine) ResolveTarget(run *ledger.Run) (delivery.Target, error) {
	p, err := e.Profiles.Resolve(run.VendorID)
	if err != nil {
		return delivery.Target{}, errors.Wrapf(err, "failed to resolve profile for run %d", run.ID)
	}
	return TargetFor(p, e.DeliveryCfg), nil
}

// TargetFor merges per-vendor target parameters over the configured
// delivery defaults. Profile values win when set.
func TargetFor(p *profile.Profile, cfg config.DeliveryConfig) delivery.Target {
	target := delivery.Target{
		ConnectionString: cfg.ConnectionString,
		Database:         cfg.Database,
		Container:        cfg.Container,
		PartitionKeyPath: cfg.PartitionKeyPath,
		WriteMode:        cfg.WriteMode,
		AllowPartial:     cfg.AllowPartial,
	}
	if p.TargetDatabase != "" {
		target.Database = p.TargetDatabase
	}
	if p.TargetContainer != "" {
		target.Container = p.TargetContainer
	}
	if p.PartitionKeyPath != "" {
		target.PartitionKeyPath = p.PartitionKeyPath
	}
	if p.WriteMode != "" {
		target.WriteMode = p.WriteMode
	}
	return target
}

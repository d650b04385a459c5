// Package commands implements the fmx CLI subcommands.
package commands

import (
	"database/sql"
	"time"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/db"
	"github.com/damian-dev1/freight-matrix-hn/delivery"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
	"github.com/damian-dev1/freight-matrix-hn/logger"
	"github.com/damian-dev1/freight-matrix-hn/payload"
	"github.com/damian-dev1/freight-matrix-hn/pipeline"
	"github.com/damian-dev1/freight-matrix-hn/profile"
)

// openDatabase opens and migrates the ledger database from config.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, logger.Logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// buildEngine assembles the full pipeline from config. The returned
// database handle must be closed by the caller.
func buildEngine(cfg *config.Config) (*pipeline.Engine, *sql.DB, error) {
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	profiles := profile.NewStore(conn)
	runs := ledger.NewStore(conn)
	materializer := payload.NewMaterializer(cfg.Export.Dir, runs, profiles)
	sink := delivery.NewToolInvoker(
		cfg.Delivery.ToolPath,
		cfg.Delivery.SettingsDir,
		time.Duration(cfg.Delivery.TimeoutSeconds)*time.Second,
	)

	engine := pipeline.NewEngine(
		profiles, runs, materializer, sink,
		cfg.Delivery, cfg.Retry.MaxRetries, logger.Logger,
	)
	return engine, conn, nil
}

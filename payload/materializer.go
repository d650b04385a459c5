// Package payload serializes accepted documents into the exchange format
// consumed by the external delivery tool. Payload files are addressed by run
// id so the same run always resolves to the same handle, and lost payloads
// can be rebuilt from the ledger's audited rows.
package payload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ingest"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
	"github.com/damian-dev1/freight-matrix-hn/logger"
	"github.com/damian-dev1/freight-matrix-hn/profile"
)

// Materializer writes run payload files under Dir.
type Materializer struct {
	Dir      string
	Runs     *ledger.Store
	Profiles *profile.Store
}

// NewMaterializer creates a materializer writing payloads under dir.
func NewMaterializer(dir string, runs *ledger.Store, profiles *profile.Store) *Materializer {
	return &Materializer{Dir: dir, Runs: runs, Profiles: profiles}
}

// PathFor returns the deterministic payload path for a run.
func (m *Materializer) PathFor(runID int64) string {
	return filepath.Join(m.Dir, fmt.Sprintf("run_%06d.json", runID))
}

// Materialize serializes documents to the run's payload file. The write is
// atomic (temp file + rename) so a crashed materialization never leaves a
// half-written payload at the canonical path.
func (m *Materializer) Materialize(runID int64, docs []ingest.Document) (string, error) {
	if err := os.MkdirAll(m.Dir, config.DefaultDirPermissions); err != nil {
		return "", errors.Wrap(err, "failed to create payload directory")
	}

	if docs == nil {
		docs = []ingest.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal payload for run %d", runID)
	}

	path := m.PathFor(runID)
	tmp, err := os.CreateTemp(m.Dir, fmt.Sprintf("run_%06d_*.tmp", runID))
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp payload")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write temp payload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to close temp payload")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "failed to move payload into place for run %d", runID)
	}

	return path, nil
}

// RematerializeIfMissing returns the run's payload handle, rebuilding the
// file from audited accepted rows when it is absent. Ids are re-derived
// through the vendor profile with the same logic as the original pass, so
// the rebuilt payload is identical to the lost one.
func (m *Materializer) RematerializeIfMissing(runID int64) (string, error) {
	path := m.PathFor(runID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "failed to stat payload for run %d", runID)
	}

	run, err := m.Runs.GetRun(runID)
	if err != nil {
		return "", err
	}
	p, err := m.Profiles.Resolve(run.VendorID)
	if err != nil {
		return "", err
	}
	docs, err := m.Runs.AcceptedRows(runID)
	if err != nil {
		return "", err
	}
	for i := range docs {
		docs[i].ID = profile.BuildID(p, ingest.IDFields(docs[i]))
	}

	logger.Infow("Rebuilding missing payload from ledger records",
		"run_id", runID,
		"documents", len(docs),
	)
	return m.Materialize(runID, docs)
}

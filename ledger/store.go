package ledger

import (
	"database/sql"
	"time"

	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ingest"
)

// Store persists runs and their accepted-row audit records in SQLite.
// All writes to a given run go through single UPDATE statements keyed by
// run id, which is what serializes concurrent writers per run.
type Store struct {
	db *sql.DB
}

// NewStore creates a ledger store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const runColumns = `id, vendor_id, profile_name, source_name,
	rows_total, rows_valid, rows_invalid, duplicates, unique_keys, rows_delivered,
	status, error_message, retry_count, max_retries, created_at, updated_at`

// CreateRun inserts a new run and assigns its monotonic id.
func (s *Store) CreateRun(run *Run) error {
	if run.Status == "" {
		run.Status = StatusPending
	}
	if !ValidStatus(run.Status) {
		return errors.NewInvalidRequestError("invalid run status %q", run.Status)
	}

	res, err := s.db.Exec(`
		INSERT INTO ingest_runs (
			vendor_id, profile_name, source_name,
			rows_total, rows_valid, rows_invalid, duplicates, unique_keys, rows_delivered,
			status, error_message, retry_count, max_retries, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.VendorID, run.ProfileName, run.SourceName,
		run.RowsTotal, run.RowsValid, run.RowsInvalid, run.Duplicates,
		run.UniqueKeys, run.RowsDelivered,
		string(run.Status), run.ErrorMessage, run.RetryCount, run.MaxRetries,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create run")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read run id")
	}
	run.ID = id
	return nil
}

// GetRun returns the run with the given id or ErrNotFound.
func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("run %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %d", id)
	}
	return run, nil
}

// UpdateRun writes the run's mutable fields back by id.
func (s *Store) UpdateRun(run *Run) error {
	if !ValidStatus(run.Status) {
		return errors.NewInvalidRequestError("invalid run status %q", run.Status)
	}

	res, err := s.db.Exec(`
		UPDATE ingest_runs SET
			rows_total = ?, rows_valid = ?, rows_invalid = ?, duplicates = ?,
			unique_keys = ?, rows_delivered = ?,
			status = ?, error_message = ?, retry_count = ?, max_retries = ?,
			updated_at = ?
		WHERE id = ?`,
		run.RowsTotal, run.RowsValid, run.RowsInvalid, run.Duplicates,
		run.UniqueKeys, run.RowsDelivered,
		string(run.Status), run.ErrorMessage, run.RetryCount, run.MaxRetries,
		run.UpdatedAt, run.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update run %d", run.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.NewNotFoundError("run %d", run.ID)
	}
	return nil
}

// BeginRetry atomically transitions a failed run to retrying and increments
// retry_count in the same statement. Returns false when the run is not
// eligible (not failed, at max retries, or already claimed by another
// writer) so duplicate retry requests degrade to no-ops.
func (s *Store) BeginRetry(id int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE ingest_runs
		SET status = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE id = ? AND status = ? AND retry_count < max_retries`,
		string(StatusRetrying), time.Now(), id, string(StatusFailed),
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to begin retry for run %d", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return affected == 1, nil
}

// ListRuns returns runs matching the optional filters, newest first.
// Pass nil status and empty vendorID for all runs; limit <= 0 means no limit.
func (s *Store) ListRuns(status *Status, vendorID string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE 1=1`
	var args []interface{}

	if status != nil {
		if !ValidStatus(*status) {
			return nil, errors.NewInvalidRequestError("invalid run status %q", *status)
		}
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	if vendorID != "" {
		query += " AND vendor_id = ?"
		args = append(args, vendorID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// InsertAcceptedRows persists the accepted documents of a run as its audit
// trail, preserving source order. The unique index on
// (run_id, vendor_id, sku, postal_code) backstops the pass-level dedup.
func (s *Store) InsertAcceptedRows(runID int64, docs []ingest.Document) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_records (run_id, vendor_id, sku, postal_code, price, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for i, doc := range docs {
		if _, err := stmt.Exec(runID, doc.VendorID, doc.SKU, doc.PostalCode, doc.Price, i); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to insert record %d for run %d", i, runID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit records for run %d", runID)
	}
	return nil
}

// AcceptedRows returns a run's audited documents in their original source
// order, without ids; callers re-derive ids through the vendor profile.
func (s *Store) AcceptedRows(runID int64) ([]ingest.Document, error) {
	rows, err := s.db.Query(`
		SELECT vendor_id, sku, postal_code, price
		FROM run_records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load records for run %d", runID)
	}
	defer rows.Close()

	var docs []ingest.Document
	for rows.Next() {
		var doc ingest.Document
		if err := rows.Scan(&doc.VendorID, &doc.SKU, &doc.PostalCode, &doc.Price); err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// StatusCounts returns the number of runs per status, for reporting.
func (s *Store) StatusCounts() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM ingest_runs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count runs")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan count")
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scannable) (*Run, error) {
	var run Run
	var status string
	err := row.Scan(
		&run.ID, &run.VendorID, &run.ProfileName, &run.SourceName,
		&run.RowsTotal, &run.RowsValid, &run.RowsInvalid, &run.Duplicates,
		&run.UniqueKeys, &run.RowsDelivered,
		&status, &run.ErrorMessage, &run.RetryCount, &run.MaxRetries,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	return &run, nil
}

// Package ledger is the durable record of ingest runs: one row per batch
// attempt, with counters, status, and retry bookkeeping. Runs are retained
// indefinitely as an audit trail.
package ledger

import (
	"time"

	"github.com/damian-dev1/freight-matrix-hn/ingest"
)

// Status is the run lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRetrying  Status = "retrying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DefaultMaxRetries is stamped on new runs unless configured otherwise.
const DefaultMaxRetries = 3

// maxErrorMessageLen bounds the accumulated failure diagnostics on a run.
// Oldest text is dropped first when the cap is exceeded.
const maxErrorMessageLen = 2000

// ValidStatus reports whether s is a known run status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusRetrying, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Run is one batch-processing attempt.
type Run struct {
	ID          int64
	VendorID    string
	ProfileName string
	SourceName  string

	RowsTotal     int
	RowsValid     int
	RowsInvalid   int
	Duplicates    int
	UniqueKeys    int
	RowsDelivered int

	Status       Status
	ErrorMessage string
	RetryCount   int
	MaxRetries   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRun creates a pending run for one source batch.
func NewRun(vendorID, profileName, sourceName string) *Run {
	now := time.Now()
	return &Run{
		VendorID:    vendorID,
		ProfileName: profileName,
		SourceName:  sourceName,
		Status:      StatusPending,
		MaxRetries:  DefaultMaxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetStats copies the validation pass counters onto the run. Counters are
// fixed once validation completes; only status fields mutate afterwards.
func (r *Run) SetStats(stats ingest.Stats) {
	r.RowsTotal = stats.RowsTotal
	r.RowsValid = stats.RowsValid
	r.RowsInvalid = stats.RowsInvalid
	r.Duplicates = stats.Duplicates
	r.UniqueKeys = stats.UniqueKeys
	r.UpdatedAt = time.Now()
}

// MarkSucceeded transitions the run to its terminal success state.
// Delivered rows always equal valid rows at terminal success.
func (r *Run) MarkSucceeded() {
	r.Status = StatusSucceeded
	r.RowsDelivered = r.RowsValid
	r.UpdatedAt = time.Now()
}

// MarkFailed transitions the run to failed, appending the new diagnostic to
// the bounded error message. Prior counters are left untouched.
func (r *Run) MarkFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = appendBounded(r.ErrorMessage, message)
	r.UpdatedAt = time.Now()
}

// RetryEligible reports whether a retry request for this run would be
// honored. Runs at max retries stay failed permanently.
func (r *Run) RetryEligible() bool {
	return r.Status == StatusFailed && r.RetryCount < r.MaxRetries
}

func appendBounded(existing, message string) string {
	if message == "" {
		message = "delivery failed"
	}
	combined := message
	if existing != "" {
		combined = existing + "; " + message
	}
	if len(combined) > maxErrorMessageLen {
		combined = combined[len(combined)-maxErrorMessageLen:]
	}
	return combined
}

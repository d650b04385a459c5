package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ingest"
	fmtest "github.com/damian-dev1/freight-matrix-hn/internal/testing"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
)

func newTestStore(t *testing.T) *ledger.Store {
	t.Helper()
	return ledger.NewStore(fmtest.CreateMigratedTestDB(t))
}

func createFailedRun(t *testing.T, store *ledger.Store) *ledger.Run {
	t.Helper()
	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))
	run.MarkFailed("delivery exploded")
	require.NoError(t, store.UpdateRun(run))
	return run
}

func TestStore_CreateAndGetRun(t *testing.T) {
	store := newTestStore(t)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	run.SetStats(ingest.Stats{RowsTotal: 5, RowsValid: 3, RowsInvalid: 2, Duplicates: 1, UniqueKeys: 3})
	require.NoError(t, store.CreateRun(run))
	require.NotZero(t, run.ID)

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", loaded.VendorID)
	assert.Equal(t, "pricing.csv", loaded.SourceName)
	assert.Equal(t, 5, loaded.RowsTotal)
	assert.Equal(t, 3, loaded.RowsValid)
	assert.Equal(t, ledger.StatusPending, loaded.Status)
	assert.Equal(t, 3, loaded.MaxRetries)
}

func TestStore_RunIDsAreMonotonic(t *testing.T) {
	store := newTestStore(t)

	first := ledger.NewRun("acme", "default", "a.csv")
	second := ledger.NewRun("acme", "default", "b.csv")
	require.NoError(t, store.CreateRun(first))
	require.NoError(t, store.CreateRun(second))

	assert.Greater(t, second.ID, first.ID)
}

func TestStore_GetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_UpdateRun(t *testing.T) {
	store := newTestStore(t)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))

	run.MarkSucceeded()
	require.NoError(t, store.UpdateRun(run))

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, loaded.Status)
}

func TestStore_BeginRetry(t *testing.T) {
	store := newTestStore(t)
	run := createFailedRun(t, store)

	claimed, err := store.BeginRetry(run.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusRetrying, loaded.Status)
	assert.Equal(t, 1, loaded.RetryCount)
}

func TestStore_BeginRetry_OnlyOneClaimWins(t *testing.T) {
	store := newTestStore(t)
	run := createFailedRun(t, store)

	first, err := store.BeginRetry(run.ID)
	require.NoError(t, err)
	assert.True(t, first)

	// The run is now retrying; a duplicate claim must lose
	second, err := store.BeginRetry(run.ID)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestStore_BeginRetry_RefusedAtMaxRetries(t *testing.T) {
	store := newTestStore(t)
	run := createFailedRun(t, store)

	// Fail the run through all three allowed retries
	for attempt := 1; attempt <= run.MaxRetries; attempt++ {
		claimed, err := store.BeginRetry(run.ID)
		require.NoError(t, err)
		require.True(t, claimed, "attempt %d should be allowed", attempt)

		loaded, err := store.GetRun(run.ID)
		require.NoError(t, err)
		loaded.MarkFailed("still broken")
		require.NoError(t, store.UpdateRun(loaded))
	}

	// Exhausted: further claims are refused, status stays failed
	claimed, err := store.BeginRetry(run.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, loaded.Status)
	assert.Equal(t, loaded.MaxRetries, loaded.RetryCount)
	assert.NotEmpty(t, loaded.ErrorMessage)
}

func TestStore_BeginRetry_RefusedForNonFailedRuns(t *testing.T) {
	store := newTestStore(t)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))

	claimed, err := store.BeginRetry(run.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "pending runs cannot enter retrying")
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)

	okRun := ledger.NewRun("acme", "default", "ok.csv")
	require.NoError(t, store.CreateRun(okRun))
	okRun.MarkSucceeded()
	require.NoError(t, store.UpdateRun(okRun))

	createFailedRun(t, store)
	otherVendor := ledger.NewRun("beta", "default", "b.csv")
	require.NoError(t, store.CreateRun(otherVendor))

	all, err := store.ListRuns(nil, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed := ledger.StatusFailed
	failedRuns, err := store.ListRuns(&failed, "", 0)
	require.NoError(t, err)
	require.Len(t, failedRuns, 1)
	assert.Equal(t, ledger.StatusFailed, failedRuns[0].Status)

	acmeRuns, err := store.ListRuns(nil, "acme", 0)
	require.NoError(t, err)
	assert.Len(t, acmeRuns, 2)

	limited, err := store.ListRuns(nil, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, otherVendor.ID, limited[0].ID, "newest first")
}

func TestStore_AcceptedRowsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))

	docs := []ingest.Document{
		{ID: "acme|A|0100", VendorID: "acme", SKU: "A", PostalCode: "0100", Price: 10},
		{ID: "acme|B|0200", VendorID: "acme", SKU: "B", PostalCode: "0200", Price: 20.5},
	}
	require.NoError(t, store.InsertAcceptedRows(run.ID, docs))

	loaded, err := store.AcceptedRows(run.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	// Source order preserved; ids are re-derived by callers, not stored
	assert.Equal(t, "A", loaded[0].SKU)
	assert.Equal(t, "B", loaded[1].SKU)
	assert.Equal(t, 20.5, loaded[1].Price)
	assert.Empty(t, loaded[0].ID)
}

func TestStore_AcceptedRows_UniquenessBackstop(t *testing.T) {
	store := newTestStore(t)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))

	docs := []ingest.Document{
		{VendorID: "acme", SKU: "A", PostalCode: "0100", Price: 10},
		{VendorID: "acme", SKU: "A", PostalCode: "0100", Price: 12},
	}
	err := store.InsertAcceptedRows(run.ID, docs)
	require.Error(t, err, "storage backstop must reject duplicate keys within a run")
}

func TestStore_StatusCounts(t *testing.T) {
	store := newTestStore(t)

	createFailedRun(t, store)
	createFailedRun(t, store)
	run := ledger.NewRun("acme", "default", "ok.csv")
	require.NoError(t, store.CreateRun(run))

	counts, err := store.StatusCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[ledger.StatusFailed])
	assert.Equal(t, 1, counts[ledger.StatusPending])
}

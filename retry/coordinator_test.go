package retry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/damian-dev1/freight-matrix-hn/delivery"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	fmtest "github.com/damian-dev1/freight-matrix-hn/internal/testing"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
	"github.com/damian-dev1/freight-matrix-hn/retry"
)

// fakeSink counts delivery attempts and fails the first failuresLeft calls.
type fakeSink struct {
	mu           sync.Mutex
	attempts     int
	failuresLeft int
}

func (s *fakeSink) Deliver(ctx context.Context, payloadPath string, target delivery.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return errors.New("store rejected the batch")
	}
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// fakeMaterializer hands back a fixed payload path.
type fakeMaterializer struct {
	mu    sync.Mutex
	calls int
}

func (m *fakeMaterializer) RematerializeIfMissing(runID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return fmt.Sprintf("/tmp/run_%06d.json", runID), nil
}

func resolveNothing(run *ledger.Run) (delivery.Target, error) {
	return delivery.Target{Database: "freight", Container: "prices"}, nil
}

func newTestCoordinator(t *testing.T, sink delivery.Sink, queueSize int) (*retry.Coordinator, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(fmtest.CreateMigratedTestDB(t))
	c := retry.NewCoordinator(
		context.Background(), store, &fakeMaterializer{}, sink,
		resolveNothing, queueSize, 0, zap.NewNop().Sugar(),
	)
	t.Cleanup(c.Stop)
	return c, store
}

func createFailedRun(t *testing.T, store *ledger.Store) *ledger.Run {
	t.Helper()
	run := ledger.NewRun("acme", "default", "pricing.csv")
	run.RowsTotal = 3
	run.RowsValid = 2
	run.RowsInvalid = 1
	require.NoError(t, store.CreateRun(run))
	run.MarkFailed("initial delivery failed")
	require.NoError(t, store.UpdateRun(run))
	return run
}

func waitForDrain(t *testing.T, c *retry.Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return c.QueueDepth() == 0 },
		5*time.Second, 10*time.Millisecond, "retry queue did not drain")
}

func TestCoordinator_RetrySucceeds(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 0)
	run := createFailedRun(t, store)

	c.Start()
	require.NoError(t, c.Enqueue(run.ID))
	waitForDrain(t, c)

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, loaded.Status)
	assert.Equal(t, 1, loaded.RetryCount)
	assert.Equal(t, loaded.RowsValid, loaded.RowsDelivered)
	assert.Equal(t, 1, sink.count())
}

func TestCoordinator_DuplicateEnqueueProcessedOnce(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 0)
	run := createFailedRun(t, store)

	// Both enqueues land before the worker starts draining
	require.NoError(t, c.Enqueue(run.ID))
	require.NoError(t, c.Enqueue(run.ID))
	assert.Equal(t, 1, c.QueueDepth())

	c.Start()
	waitForDrain(t, c)

	assert.Equal(t, 1, sink.count(), "one enqueue window, one processing pass")
}

func TestCoordinator_RetriesExhaust(t *testing.T) {
	sink := &fakeSink{failuresLeft: 100}
	c, store := newTestCoordinator(t, sink, 0)
	run := createFailedRun(t, store)

	c.Start()
	for i := 0; i < run.MaxRetries; i++ {
		require.NoError(t, c.Enqueue(run.ID))
		waitForDrain(t, c)
	}

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, loaded.Status)
	assert.Equal(t, loaded.MaxRetries, loaded.RetryCount)
	assert.Equal(t, run.MaxRetries, sink.count())

	// Exhausted: a further enqueue is accepted but skipped at dequeue time
	require.NoError(t, c.Enqueue(run.ID))
	waitForDrain(t, c)

	assert.Equal(t, run.MaxRetries, sink.count(), "no delivery past max retries")

	loaded, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, loaded.Status, "run stays visible as failed")
	assert.NotEmpty(t, loaded.ErrorMessage)
	assert.LessOrEqual(t, len(loaded.ErrorMessage), 2000)
}

func TestCoordinator_SkipsNonFailedRuns(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 0)

	run := ledger.NewRun("acme", "default", "pricing.csv")
	require.NoError(t, store.CreateRun(run))
	run.MarkSucceeded()
	require.NoError(t, store.UpdateRun(run))

	c.Start()
	require.NoError(t, c.Enqueue(run.ID))
	waitForDrain(t, c)

	assert.Zero(t, sink.count())

	loaded, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, loaded.Status)
}

func TestCoordinator_QueueBounded(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 1)

	first := createFailedRun(t, store)
	second := createFailedRun(t, store)

	// Worker not started: the single queue slot fills up
	require.NoError(t, c.Enqueue(first.ID))
	err := c.Enqueue(second.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrQueueFull))

	// Duplicate of a queued id is still a silent no-op, not a full-queue error
	require.NoError(t, c.Enqueue(first.ID))
}

func TestCoordinator_EnqueueAllFailed(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 0)

	createFailedRun(t, store)
	createFailedRun(t, store)

	okRun := ledger.NewRun("acme", "default", "ok.csv")
	require.NoError(t, store.CreateRun(okRun))
	okRun.MarkSucceeded()
	require.NoError(t, store.UpdateRun(okRun))

	exhausted := createFailedRun(t, store)
	exhausted.RetryCount = exhausted.MaxRetries
	require.NoError(t, store.UpdateRun(exhausted))

	enqueued, err := c.EnqueueAllFailed()
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued, "only eligible failed runs are queued")

	c.Start()
	waitForDrain(t, c)
	assert.Equal(t, 2, sink.count())
}

func TestCoordinator_StopIsCooperativeAndIdempotent(t *testing.T) {
	sink := &fakeSink{}
	c, store := newTestCoordinator(t, sink, 0)
	run := createFailedRun(t, store)

	c.Start()
	require.NoError(t, c.Enqueue(run.ID))
	waitForDrain(t, c)

	c.Stop()
	c.Stop()

	// Restart picks up new work
	other := createFailedRun(t, store)
	c.Start()
	require.NoError(t, c.Enqueue(other.ID))
	waitForDrain(t, c)

	assert.Equal(t, 2, sink.count())
}

// Package retry redrives failed ingest runs: a bounded, deduplicating queue
// of run ids drained by one sequential worker. Single-worker processing is
// load-bearing, not an optimization: concurrent retries of the same run must
// never race, and cross-run ordering carries no correctness requirement.
package retry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/damian-dev1/freight-matrix-hn/delivery"
	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ledger"
)

// DefaultQueueSize bounds the retry queue when no capacity is configured.
const DefaultQueueSize = 64

// stopTimeout bounds how long Stop waits for the in-flight attempt.
const stopTimeout = 30 * time.Second

// Materializer is the payload regeneration seam.
type Materializer interface {
	RematerializeIfMissing(runID int64) (string, error)
}

// TargetResolver maps a run to its delivery target parameters.
type TargetResolver func(run *ledger.Run) (delivery.Target, error)

// Coordinator owns the retry queue and its single worker.
type Coordinator struct {
	store        *ledger.Store
	materializer Materializer
	sink         delivery.Sink
	resolve      TargetResolver
	limiter      *rate.Limiter // nil = no delivery pacing

	queue   chan int64
	pending map[int64]struct{} // queued or currently retrying run ids

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool

	logger *zap.SugaredLogger
	mu     sync.Mutex
}

// NewCoordinator creates a stopped coordinator. attemptsPerMinute <= 0
// disables delivery pacing; queueSize <= 0 uses DefaultQueueSize.
func NewCoordinator(
	ctx context.Context,
	store *ledger.Store,
	materializer Materializer,
	sink delivery.Sink,
	resolve TargetResolver,
	queueSize int,
	attemptsPerMinute int,
	logger *zap.SugaredLogger,
) *Coordinator {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	var limiter *rate.Limiter
	if attemptsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(attemptsPerMinute)/60.0), 1)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	return &Coordinator{
		store:        store,
		materializer: materializer,
		sink:         sink,
		resolve:      resolve,
		limiter:      limiter,
		queue:        make(chan int64, queueSize),
		pending:      make(map[int64]struct{}),
		parentCtx:    ctx,
		ctx:          workerCtx,
		cancel:       cancel,
		logger:       logger.Named("retry"),
	}
}

// Enqueue requests a retry of the given run. Enqueuing a run that is already
// queued or currently retrying is a no-op; a full queue returns ErrQueueFull.
// Eligibility (failed status, retries remaining) is checked at dequeue time
// so a batch of mixed-eligibility ids never errors.
func (c *Coordinator) Enqueue(runID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, queued := c.pending[runID]; queued {
		c.logger.Debugw("Run already queued for retry", "run_id", runID)
		return nil
	}

	select {
	case c.queue <- runID:
		c.pending[runID] = struct{}{}
		c.logger.Infow("Run queued for retry", "run_id", runID)
		return nil
	default:
		return errors.Wrapf(errors.ErrQueueFull, "cannot enqueue run %d", runID)
	}
}

// EnqueueAllFailed queues every failed run that still has retries left.
// Returns the number of runs newly queued.
func (c *Coordinator) EnqueueAllFailed() (int, error) {
	failed := ledger.StatusFailed
	runs, err := c.store.ListRuns(&failed, "", 0)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, run := range runs {
		if !run.RetryEligible() {
			continue
		}
		if err := c.Enqueue(run.ID); err != nil {
			if errors.Is(err, errors.ErrQueueFull) {
				c.logger.Warnw("Retry queue full, remaining failed runs not queued",
					"enqueued", enqueued)
				return enqueued, err
			}
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// QueueDepth returns the number of run ids queued or in flight.
func (c *Coordinator) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the single worker. Safe to call again after Stop.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	select {
	case <-c.ctx.Done():
		// Context cancelled by a previous Stop; derive a fresh one
		c.ctx, c.cancel = context.WithCancel(c.parentCtx)
	default:
	}

	c.running = true
	c.wg.Add(1)
	go c.worker()
}

// Stop cancels the worker between dequeues and waits for any in-flight
// attempt to finish. The delivery call itself is never interrupted; the
// external tool is an opaque, non-interruptible operation.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Infow("Retry coordinator stopped")
	case <-time.After(stopTimeout):
		c.logger.Warnw("Retry coordinator stop timed out; delivery attempt still in flight",
			"timeout", stopTimeout)
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case runID := <-c.queue:
			c.processRun(runID)
			c.release(runID)
		}
	}
}

// release removes a run from the pending set once its attempt has finished,
// making it eligible for enqueueing again.
func (c *Coordinator) release(runID int64) {
	c.mu.Lock()
	delete(c.pending, runID)
	c.mu.Unlock()
}

func (c *Coordinator) processRun(runID int64) {
	// Pace before claiming the run so a cancelled wait leaves it untouched
	if c.limiter != nil {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}
	}

	claimed, err := c.store.BeginRetry(runID)
	if err != nil {
		c.logger.Errorw("Failed to claim run for retry", "run_id", runID, "error", err)
		return
	}
	if !claimed {
		// Not failed, exhausted, or another writer holds the transition
		c.logger.Debugw("Run not eligible for retry, skipping", "run_id", runID)
		return
	}

	run, err := c.store.GetRun(runID)
	if err != nil {
		c.logger.Errorw("Failed to load claimed run", "run_id", runID, "error", err)
		return
	}

	c.logger.Infow("Retrying run",
		"run_id", runID,
		"attempt", run.RetryCount,
		"max_retries", run.MaxRetries,
	)

	if err := c.attemptDelivery(run); err != nil {
		run.MarkFailed(err.Error())
		c.logger.Warnw("Retry attempt failed",
			"run_id", runID,
			"attempt", run.RetryCount,
			"error", err,
		)
	} else {
		run.MarkSucceeded()
		c.logger.Infow("Retry attempt succeeded",
			"run_id", runID,
			"rows_delivered", run.RowsDelivered,
		)
	}

	if err := c.store.UpdateRun(run); err != nil {
		c.logger.Errorw("Failed to record retry outcome", "run_id", runID, "error", err)
	}
}

func (c *Coordinator) attemptDelivery(run *ledger.Run) error {
	path, err := c.materializer.RematerializeIfMissing(run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to materialize payload")
	}

	target, err := c.resolve(run)
	if err != nil {
		return errors.Wrap(err, "failed to resolve delivery target")
	}

	// Delivery is bounded by the sink's own timeout, not the worker context:
	// Stop must let the in-flight attempt run to completion.
	return c.sink.Deliver(context.Background(), path, target)
}

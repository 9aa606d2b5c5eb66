package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sc4snmp/snmp-poller/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool — fan-out dispatcher for PollJobs
// ─────────────────────────────────────────────────────────────────────────────

// WorkerPool fans poll jobs out to N worker goroutines and collects results
// into a shared output channel.
type WorkerPool struct {
	numWorkers int
	poller     Poller
	output     chan<- decoder.RawPollResult
	logger     *slog.Logger

	jobs chan PollJob
	wg   sync.WaitGroup
}

// NewWorkerPool creates a pool of numWorkers goroutines that execute poll jobs
// using the supplied Poller and send results to output.
func NewWorkerPool(numWorkers int, poller Poller, output chan<- decoder.RawPollResult, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 100
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		poller:     poller,
		output:     output,
		logger:     logger,
		jobs:       make(chan PollJob, numWorkers*2),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Submit enqueues a poll job. It blocks if the internal job channel is full.
func (w *WorkerPool) Submit(job PollJob) {
	w.jobs <- job
}

// TrySubmit enqueues a poll job without blocking. Returns false if the channel
// is full, allowing the caller to drop or defer the job.
func (w *WorkerPool) TrySubmit(job PollJob) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for all workers to drain.
func (w *WorkerPool) Stop() {
	close(w.jobs)
	w.wg.Wait()
}

// worker is the per-goroutine loop.
func (w *WorkerPool) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			result, err := func() (res decoder.RawPollResult, err error) {
				defer func() {
					if r := recover(); r != nil {
						w.logger.Error("panic_recovered", "category", 2,
							"device", job.Hostname, "object", job.ObjectDef.Key, "panic", fmt.Sprint(r))
						err = fmt.Errorf("poll panicked: %v", r)
					}
				}()
				return w.poller.Poll(ctx, job)
			}()
			if err != nil {
				w.logger.Warn("poll failed",
					"device", job.Hostname,
					"object", job.ObjectDef.Key,
					"error", err.Error(),
				)
			}
			// A successful attempt with no varbinds (e.g. a BulkWalk past
			// end-of-subtree) carries nothing worth decoding — drop it. An
			// OutcomeError result is always forwarded so the publish stage
			// can emit its sc4snmp:error event and update rewalk state.
			if result.Outcome == decoder.OutcomeOK && len(result.Varbinds) == 0 {
				continue
			}
			select {
			case w.output <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

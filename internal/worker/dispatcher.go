package worker

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Dispatcher hands a freshly created job to the runner without blocking the
// caller: one goroutine per job, capped by a weighted semaphore. Execution
// uses the dispatcher's base context, not the HTTP request context, so the
// job keeps running after the creating request returns.
type Dispatcher struct {
	runner *Runner
	base   context.Context
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

func NewDispatcher(base context.Context, runner *Runner, maxConcurrent int64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Dispatcher{
		runner: runner,
		base:   base,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// Dispatch schedules the job and returns immediately.
func (d *Dispatcher) Dispatch(jobID uuid.UUID) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(d.base, 1); err != nil {
			// shutting down; the job stays pending and can be re-triggered
			log.Printf("[dispatcher] job_id=%s not started: %v", jobID, err)
			return
		}
		defer d.sem.Release(1)

		if err := d.runner.Run(d.base, jobID); err != nil {
			log.Printf("[dispatcher] job_id=%s run error=%v", jobID, err)
		}
	}()
}

// Wait blocks until all dispatched jobs have finished. Used on shutdown to
// drain in-flight work.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

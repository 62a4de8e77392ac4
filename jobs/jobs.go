/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

// Package jobs implements the small worker pool used to run blocking or
// CPU-bound work (DNS/ident lookups, config parsing) off the goroutines
// that own User/Channel state. Workers never touch server state directly;
// a Job's outcome is delivered as a Result on the Pool's Results channel
// so the owner can apply it safely.
package jobs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// Job is a unit of work that may block or burn CPU. Run executes off the
// main goroutine; its return values reach the Pool's owner as a Result,
// on whatever goroutine drains Results.
type Job interface {
	// ID uniquely identifies this job instance, for logging and dependency
	// draining.
	ID() string
	// Tag identifies the module/subsystem this job belongs to, so Drain
	// can wait for all jobs of a given tag before an unload proceeds.
	Tag() string
	// Run performs the blocking work. It must poll ctx for cancellation.
	Run(ctx context.Context) (any, error)
}

// Result is delivered on the Pool's Results channel once a Job completes.
type Result struct {
	JobID string
	Tag   string
	Value any
	Err   error
}

// Pool runs Jobs on a bounded set of goroutines via conc's context pool,
// and is cancellation-aware: cancelling the context passed to Submit is
// seen by the Job's Run through ctx.Done(), cooperatively.
type Pool struct {
	results chan Result
	inner   *pool.ContextPool

	mu      sync.Mutex
	pending map[string]int // tag -> count of jobs in flight
	done    map[string]chan struct{}
}

// New creates a Pool with the given worker concurrency and a buffered
// results channel of the given size.
func New(workers, resultBuffer int) *Pool {
	p := &Pool{
		results: make(chan Result, resultBuffer),
		pending: make(map[string]int),
		done:    make(map[string]chan struct{}),
	}
	p.inner = pool.New().WithMaxGoroutines(workers).WithContext(context.Background())
	return p
}

// Results returns the channel the owner should drain on its own loop to
// apply Job outcomes to server state.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Submit schedules a Job to run on the pool. It returns immediately; the
// Job's outcome arrives later on Results().
func (p *Pool) Submit(ctx context.Context, job Job) {
	p.mu.Lock()
	p.pending[job.Tag()]++
	p.mu.Unlock()

	p.inner.Go(func(context.Context) error {
		defer p.release(job.Tag())

		value, err := job.Run(ctx)
		select {
		case p.results <- Result{JobID: job.ID(), Tag: job.Tag(), Value: value, Err: err}:
		case <-ctx.Done():
		}
		return nil
	})
}

func (p *Pool) release(tag string) {
	p.mu.Lock()
	p.pending[tag]--
	remaining := p.pending[tag]
	ch := p.done[tag]
	p.mu.Unlock()

	if remaining == 0 && ch != nil {
		close(ch)
	}
}

// InFlight returns the total number of jobs currently running or
// queued across all tags, for exporting as a gauge.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, count := range p.pending {
		total += count
	}
	return total
}

// Drain blocks until every currently in-flight Job carrying the given tag
// has completed. Used by a module unload to ensure no worker still holds a
// dependency on code that is about to be removed.
func (p *Pool) Drain(tag string) {
	p.mu.Lock()
	if p.pending[tag] == 0 {
		p.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	p.done[tag] = ch
	p.mu.Unlock()

	<-ch
}

// Wait blocks until all submitted jobs have returned, then closes Results.
func (p *Pool) Wait() {
	_ = p.inner.Wait()
	close(p.results)
}

// NewID returns a fresh unique Job identifier.
func NewID() string {
	return uuid.NewString()
}

// Cancellable wraps a flag a Job's Run method can poll cooperatively, for
// jobs driven by something other than ctx (e.g. a loop bounded by an
// external iterator).
type Cancellable struct {
	cancelled atomic.Bool
}

// Cancel requests cooperative cancellation.
func (c *Cancellable) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *Cancellable) Cancelled() bool { return c.cancelled.Load() }

package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Submit runs one unit of work. Items are independent; an error fails
// only that item, never its siblings.
type Submit[I, R any] func(ctx context.Context, item I) (R, error)

// Pool executes a batch of independent, possibly failing units of work
// across a bounded group of workers and exposes completed results as a
// pull-based sequence in completion order, not submission order.
//
// A failed unit is logged, counted on the pool's Progress and dropped;
// it never reaches the result sequence and never aborts sibling units.
// After the pool has drained, Completed()+Errors() on its Progress equals
// the number of submitted items.
type Pool[I, R any] struct {
	label     string
	submit    Submit[I, R]
	source    <-chan I
	workers   int
	progress  *Progress
	results   chan R
	submitted atomic.Int64
	done      chan struct{}
	started   atomic.Bool
}

// NewPool creates a pool over a materialized batch. The batch size seeds
// the pool's Progress. maxWorkers must be at least 1.
func NewPool[I, R any](label string, items []I, maxWorkers int, submit Submit[I, R]) (*Pool[I, R], error) {
	source := make(chan I, len(items))
	for _, item := range items {
		source <- item
	}
	close(source)

	return newPool(label, source, int64(len(items)), maxWorkers, submit)
}

// NewLazyPool creates a pool fed from a channel of lazily discovered
// items; the batch size is unknown to its Progress. The channel must be
// closed by the producer to end the batch.
func NewLazyPool[I, R any](label string, items <-chan I, maxWorkers int, submit Submit[I, R]) (*Pool[I, R], error) {
	return newPool(label, items, TotalUnknown, maxWorkers, submit)
}

func newPool[I, R any](label string, source <-chan I, total int64, maxWorkers int, submit Submit[I, R]) (*Pool[I, R], error) {
	if maxWorkers < 1 {
		return nil, fmt.Errorf("max workers must be at least 1, got %d", maxWorkers)
	}
	if submit == nil {
		return nil, fmt.Errorf("submit function is required")
	}

	buffer := total
	if buffer < 0 {
		buffer = int64(maxWorkers * 2)
	}

	return &Pool[I, R]{
		label:    label,
		submit:   submit,
		source:   source,
		workers:  maxWorkers,
		progress: NewProgress(label, total),
		results:  make(chan R, buffer),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the workers and begins submitting items. It returns
// immediately; results are consumed via Results. Cancelling ctx stops
// submission of not-yet-started items without counting them.
func (p *Pool[I, R]) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(p.done)
		defer close(p.results)

		var group errgroup.Group
		group.SetLimit(p.workers)

		for item := range p.source {
			if ctx.Err() != nil {
				break
			}
			p.submitted.Add(1)

			group.Go(func() error {
				p.run(ctx, item)

				return nil
			})
		}

		_ = group.Wait()
	}()
}

func (p *Pool[I, R]) run(ctx context.Context, item I) {
	if ctx.Err() != nil {
		// Cancelled before starting: no result, no counter update.
		p.submitted.Add(-1)

		return
	}

	result, err := p.submit(ctx, item)
	if err != nil {
		slog.Warn("unit of work failed", "pool", p.label, "error", err)
		p.progress.Advance(1, true)

		return
	}

	p.progress.Advance(1, false)

	select {
	case p.results <- result:
	case <-ctx.Done():
	}
}

// Results returns the completion-ordered result sequence. The channel is
// closed once every submitted item has finished.
func (p *Pool[I, R]) Results() <-chan R {
	return p.results
}

// Wait blocks until all workers have finished and the result sequence is
// closed.
func (p *Pool[I, R]) Wait() {
	<-p.done
}

// Progress returns the pool's tracker.
func (p *Pool[I, R]) Progress() *Progress {
	return p.progress
}

// Submitted returns the number of items handed to workers so far.
func (p *Pool[I, R]) Submitted() int64 {
	return p.submitted.Load()
}

// Label returns the pool description.
func (p *Pool[I, R]) Label() string {
	return p.label
}

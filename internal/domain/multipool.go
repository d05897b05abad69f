package domain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"codesift.dev/pkg/codesift/internal/controller"
)

// PoolDriver drains one pool into its sink. Drivers are created with
// Gather and run together by RunPools.
type PoolDriver struct {
	progress *Progress
	drain    func(ctx context.Context) error
}

// Gather binds a pool to a sink slice. The returned driver starts the
// pool, appends every result to the sink in completion order, and waits
// for the pool to shut down.
func Gather[I, R any](pool *Pool[I, R], sink *[]R) *PoolDriver {
	return &PoolDriver{
		progress: pool.Progress(),
		drain: func(ctx context.Context) error {
			pool.Start(ctx)
			for result := range pool.Results() {
				*sink = append(*sink, result)
			}
			pool.Wait()

			return ctx.Err()
		},
	}
}

// GatherFunc binds a pool to a per-result callback instead of a sink
// slice; collection loops that interleave checkpointing use this form.
func GatherFunc[I, R any](pool *Pool[I, R], collect func(R) error) *PoolDriver {
	return &PoolDriver{
		progress: pool.Progress(),
		drain: func(ctx context.Context) error {
			pool.Start(ctx)
			for result := range pool.Results() {
				if err := collect(result); err != nil {
					return err
				}
			}
			pool.Wait()

			return ctx.Err()
		},
	}
}

// RunPools runs every driver concurrently under one shared display. Each
// pool keeps its own completion order; interleaving across pools is
// unspecified. RunPools returns once every driver has drained its pool,
// after releasing the display.
func RunPools(ctx context.Context, ui controller.UI, drivers ...*PoolDriver) error {
	for _, driver := range drivers {
		ui.Observe(driver.progress)
	}

	if err := ui.Start(ctx); err != nil {
		return fmt.Errorf("start display: %w", err)
	}
	// Display teardown must happen even when the run is cancelled.
	defer ui.Close(context.Background())

	group, groupCtx := errgroup.WithContext(ctx)
	for _, driver := range drivers {
		group.Go(func() error {
			return driver.drain(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("drain pools: %w", err)
	}

	return nil
}

package domain

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"
)

func doubleOrFail(_ context.Context, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative input %d", n)
	}

	return n * 2, nil
}

func TestPoolConservation(t *testing.T) {
	// 5 good items, 2 failing ones: every submitted item ends up either
	// yielded or counted as an error, never both, never lost.
	items := []int{1, 2, -1, 3, 4, -2, 5}

	pool, err := NewPool("doubling", items, 2, doubleOrFail)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	pool.Start(context.Background())

	var results []int
	for result := range pool.Results() {
		results = append(results, result)
	}
	pool.Wait()

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if pool.Progress().Errors() != 2 {
		t.Errorf("errors = %d, expected 2", pool.Progress().Errors())
	}
	if pool.Progress().Completed() != 5 {
		t.Errorf("completed = %d, expected 5", pool.Progress().Completed())
	}
	if got := pool.Progress().Completed() + pool.Progress().Errors(); got != pool.Submitted() {
		t.Errorf("conservation violated: completed+errors=%d, submitted=%d", got, pool.Submitted())
	}

	sort.Ints(results)
	expected := []int{2, 4, 6, 8, 10}
	for i, n := range expected {
		if results[i] != n {
			t.Errorf("results[%d] = %d, expected %d", i, results[i], n)
		}
	}
}

func TestPoolSingleWorker(t *testing.T) {
	pool, err := NewPool("serial", []int{1, 2, 3}, 1, doubleOrFail)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	pool.Start(context.Background())

	count := 0
	for range pool.Results() {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 results, got %d", count)
	}
}

func TestPoolRejectsBadConfig(t *testing.T) {
	if _, err := NewPool("bad", []int{1}, 0, doubleOrFail); err == nil {
		t.Error("expected error for zero workers")
	}
	if _, err := NewPool("bad", []int{1}, -3, doubleOrFail); err == nil {
		t.Error("expected error for negative workers")
	}
	if _, err := NewPool[int, int]("bad", []int{1}, 1, nil); err == nil {
		t.Error("expected error for nil submit function")
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	pool, err := NewPool("empty", nil, 2, doubleOrFail)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	pool.Start(context.Background())

	if _, open := <-pool.Results(); open {
		t.Error("expected an immediately closed result sequence")
	}
	pool.Wait()

	if pool.Submitted() != 0 {
		t.Errorf("submitted = %d, expected 0", pool.Submitted())
	}
}

func TestLazyPoolUnknownTotal(t *testing.T) {
	source := make(chan int)
	go func() {
		defer close(source)

		for i := 0; i < 7; i++ {
			source <- i
		}
	}()

	pool, err := NewLazyPool("streamed", source, 3, doubleOrFail)
	if err != nil {
		t.Fatalf("NewLazyPool failed: %v", err)
	}
	if pool.Progress().Total() != TotalUnknown {
		t.Errorf("lazy pool total = %d, expected TotalUnknown", pool.Progress().Total())
	}

	pool.Start(context.Background())

	count := 0
	for range pool.Results() {
		count++
	}
	pool.Wait()

	if count != 7 {
		t.Errorf("expected 7 results, got %d", count)
	}
	if pool.Submitted() != 7 {
		t.Errorf("submitted = %d, expected 7", pool.Submitted())
	}
}

func TestPoolCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool, err := NewPool("cancelled", []int{1, 2, 3}, 2, doubleOrFail)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	pool.Start(ctx)
	pool.Wait()

	if _, open := <-pool.Results(); open {
		t.Error("cancelled pool must close its result sequence")
	}
	if pool.Progress().Completed() != 0 || pool.Progress().Errors() != 0 {
		t.Errorf("cancelled items must not touch counters: completed=%d errors=%d",
			pool.Progress().Completed(), pool.Progress().Errors())
	}
}

func TestPoolFailureIsolation(t *testing.T) {
	// One failing unit must not slow down or abort its siblings.
	items := make([]int, 50)
	for i := range items {
		items[i] = i - 25 // half are negative and fail
	}

	pool, err := NewPool("mixed", items, 4, doubleOrFail)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		pool.Start(context.Background())
		for range pool.Results() {
		}
		pool.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not drain; a failing unit blocked its siblings")
	}

	if pool.Progress().Errors() != 25 {
		t.Errorf("errors = %d, expected 25", pool.Progress().Errors())
	}
	if pool.Progress().Completed() != 25 {
		t.Errorf("completed = %d, expected 25", pool.Progress().Completed())
	}
}

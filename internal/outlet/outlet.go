// Package outlet bounds how many beverages are dispensed at once.
//
// A Scheduler owns n numbered outlets. Work acquires an outlet, runs, and
// returns it; when all outlets are busy, further work waits in submission
// order until one frees up.
package outlet

import (
	"context"
	"fmt"
	"sync"
)

// Scheduler hands out outlet numbers 1..n to concurrent work.
type Scheduler struct {
	n    int
	free chan int
}

// New creates a Scheduler with n outlets. It panics if n < 1; callers
// validate the outlet count at configuration time.
func New(n int) *Scheduler {
	if n < 1 {
		panic(fmt.Sprintf("outlet: outlet count must be positive, got %d", n))
	}
	free := make(chan int, n)
	for i := 1; i <= n; i++ {
		free <- i
	}
	return &Scheduler{n: n, free: free}
}

// Outlets returns the number of outlets.
func (s *Scheduler) Outlets() int { return s.n }

// Acquire blocks until an outlet is free or ctx is done. The returned
// release func must be called exactly once; extra calls are no-ops.
func (s *Scheduler) Acquire(ctx context.Context) (outlet int, release func(), err error) {
	// Prefer cancellation when both are ready.
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	select {
	case id := <-s.free:
		var once sync.Once
		return id, func() { once.Do(func() { s.free <- id }) }, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Run calls fn for each index in [0, n), at most Outlets() at a time, and
// waits for every started call to finish. Indices start in order. Once ctx
// is done no further calls start; errs[i] is ctx's error for each index that
// never ran and nil otherwise. Calls already started always run to completion.
func (s *Scheduler) Run(ctx context.Context, n int, fn func(outlet, i int)) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		id, release, err := s.Acquire(ctx)
		if err != nil {
			for j := i; j < n; j++ {
				errs[j] = err
			}
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			fn(id, i)
		}()
	}
	wg.Wait()
	return errs
}

// Package parallel fans independent per-index work out over a fixed pool of
// workers, each writing to its own contiguous slice of the output.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task processes indices [lo, hi) on behalf of worker. It should check ctx
// between items so a failure elsewhere stops the batch early.
type Task func(ctx context.Context, worker, lo, hi int) error

// ProgressCallback is a function that reports progress during a batch
type ProgressCallback func(completed, total int, message string)

// Workers returns the pool size: numCores when positive, otherwise the
// number of CPUs, or 1 when parallel execution is off.
func Workers(parallel bool, numCores int) int {
	if !parallel {
		return 1
	}
	if numCores > 0 {
		return numCores
	}
	return runtime.NumCPU()
}

// Run partitions [0, n) over workers goroutines and waits for all of them.
// The first error cancels the remaining work and is returned.
func Run(n, workers int, task Task) error {
	return RunWithProgress(n, workers, task, nil)
}

// RunWithProgress is Run with a callback invoked by each worker as soon as
// its bucket completes. Calls are serialised and see a growing count.
func RunWithProgress(n, workers int, task Task, progress ProgressCallback) error {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	pm := NewPartitionMap(workers, n)
	if pm.ParallelDegree == 1 {
		if err := task(context.Background(), 0, 0, n); err != nil {
			return err
		}
		report(progress, n, n)
		return nil
	}

	var (
		mu        sync.Mutex
		completed int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < pm.ParallelDegree; w++ {
		lo, hi := pm.Bucket(w)
		w := w
		g.Go(func() error {
			if err := task(ctx, w, lo, hi); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			completed += hi - lo
			report(progress, completed, n)
			return nil
		})
	}
	return g.Wait()
}

func report(progress ProgressCallback, completed, total int) {
	if progress != nil {
		progress(completed, total, "")
	}
}

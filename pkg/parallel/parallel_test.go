package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionMap(t *testing.T) {
	{ // remainder spread over the leading buckets
		pm := NewPartitionMap(3, 10)
		assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, pm.Partitions)
		assert.Equal(t, 4, pm.Size(0))
		assert.Equal(t, 3, pm.Size(2))
	}
	{ // even split
		pm := NewPartitionMap(4, 8)
		for b := 0; b < 4; b++ {
			lo, hi := pm.Bucket(b)
			assert.Equal(t, 2*b, lo)
			assert.Equal(t, 2*b+2, hi)
		}
	}
	{ // every index covered exactly once, imbalance at most one
		for _, tc := range [][2]int{{1, 1}, {2, 7}, {5, 23}, {8, 1000}, {7, 7}} {
			pm := NewPartitionMap(tc[0], tc[1])
			next, lo, hi := 0, tc[1], 0
			for b := 0; b < pm.ParallelDegree; b++ {
				kMin, kMax := pm.Bucket(b)
				assert.Equal(t, next, kMin)
				next = kMax
				d := pm.Size(b)
				lo, hi = min(lo, d), max(hi, d)
			}
			assert.Equal(t, tc[1], next)
			assert.LessOrEqual(t, hi-lo, 1)
		}
	}
	{ // degree below one is clamped
		pm := NewPartitionMap(0, 5)
		assert.Equal(t, 1, pm.ParallelDegree)
		assert.Equal(t, [2]int{0, 5}, pm.Partitions[0])
	}
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Workers(false, 8))
	assert.Equal(t, 3, Workers(true, 3))
	assert.Equal(t, runtime.NumCPU(), Workers(true, 0))
}

func TestRunCoversEveryIndex(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 16, 200} {
		n := 101
		hits := make([]int32, n)
		seen := make([]int32, workers)
		err := Run(n, workers, func(ctx context.Context, w, lo, hi int) error {
			atomic.AddInt32(&seen[w], 1)
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
			return nil
		})
		require.NoError(t, err)
		for i := range hits {
			assert.Equal(t, int32(1), hits[i], "index %d with %d workers", i, workers)
		}
		for w := range seen {
			assert.LessOrEqual(t, seen[w], int32(1))
		}
	}
}

func TestRunEmpty(t *testing.T) {
	called := false
	err := Run(0, 4, func(ctx context.Context, w, lo, hi int) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestRunFirstErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	var processed int32
	err := Run(1000, 4, func(ctx context.Context, w, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if i == lo && w == 2 {
				return errors.Wrapf(boom, "worker %d", w)
			}
			atomic.AddInt32(&processed, 1)
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	err = Run(10, 1, func(ctx context.Context, w, lo, hi int) error {
		return boom
	})
	assert.Equal(t, boom, err)
}

func TestRunWithProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		calls [][2]int
	)
	err := RunWithProgress(10, 3, func(ctx context.Context, w, lo, hi int) error {
		return nil
	}, func(completed, total int, message string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int{completed, total})
	})
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{10, 10}, calls[len(calls)-1])
	for k := 1; k < len(calls); k++ {
		assert.Greater(t, calls[k][0], calls[k-1][0])
	}
}

func TestProgressReportedWhileRunning(t *testing.T) {
	// the second bucket only finishes once the first has been reported
	release := make(chan struct{})
	var calls []int
	err := RunWithProgress(10, 2, func(ctx context.Context, w, lo, hi int) error {
		if w == 0 {
			return nil
		}
		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("no progress reported before the batch finished")
		}
	}, func(completed, total int, message string) {
		calls = append(calls, completed)
		if completed < total {
			close(release)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10}, calls)
}

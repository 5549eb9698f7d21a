package coordinator_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swoopdl/swoop/internal/coordinator"
	"github.com/swoopdl/swoop/internal/partition"
)

func makeRanges(n int) []partition.Range {
	return partition.Split(int64(n*10), 10, n)
}

func TestClaimNext(t *testing.T) {
	coord := coordinator.New(makeRanges(3), 3)

	seen := make(map[int]bool)
	for i := 0; i < 3; i++ {
		chunk, ok := coord.ClaimNext()
		require.True(t, ok)
		assert.False(t, seen[chunk.Index], "chunk %d claimed twice", chunk.Index)
		seen[chunk.Index] = true
	}

	_, ok := coord.ClaimNext()
	assert.False(t, ok, "no pending chunks should remain")
}

func TestClaimNextConcurrent(t *testing.T) {
	const chunks = 8
	coord := coordinator.New(makeRanges(chunks), 3)

	claimed := make(chan int, chunks*2)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				chunk, ok := coord.ClaimNext()
				if !ok {
					return
				}
				claimed <- chunk.Index
			}
		}()
	}
	wg.Wait()
	close(claimed)

	seen := make(map[int]int)
	for index := range claimed {
		seen[index]++
	}
	assert.Len(t, seen, chunks)
	for index, count := range seen {
		assert.Equal(t, 1, count, "chunk %d claimed %d times", index, count)
	}
}

func TestRetryableFailureRequeues(t *testing.T) {
	coord := coordinator.New(makeRanges(1), 3)

	chunk, ok := coord.ClaimNext()
	require.True(t, ok)
	coord.MarkFailed(chunk.Index)

	assert.Equal(t, coordinator.Pending, coord.StateOf(chunk.Index))
	requeued, ok := coord.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, chunk.Index, requeued.Index)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	const maxRetries = 3
	coord := coordinator.New(makeRanges(1), maxRetries)

	// maxRetries failures keep the chunk retryable
	for attempt := 0; attempt <= maxRetries; attempt++ {
		chunk, ok := coord.ClaimNext()
		require.True(t, ok, "attempt %d should be allowed", attempt)
		coord.MarkFailed(chunk.Index)
	}

	// the (maxRetries+1)-th failure parks it for good
	_, ok := coord.ClaimNext()
	assert.False(t, ok, "permanently failed chunk must never be claimable")
	assert.Equal(t, coordinator.FailedPermanently, coord.StateOf(0))
	assert.Equal(t, 1, coord.FailedPermanentlyCount())
	assert.False(t, coord.AllDone())
	assert.True(t, coord.Exhausted())
}

func TestMarkCompletedIdempotent(t *testing.T) {
	coord := coordinator.New(makeRanges(2), 3)

	first, ok := coord.ClaimNext()
	require.True(t, ok)
	coord.MarkCompleted(first.Index)
	coord.MarkCompleted(first.Index)
	assert.Equal(t, coordinator.Completed, coord.StateOf(first.Index))

	// a stale failure signal must not undo completion
	coord.MarkFailed(first.Index)
	assert.Equal(t, coordinator.Completed, coord.StateOf(first.Index))

	second, ok := coord.ClaimNext()
	require.True(t, ok)
	coord.MarkCompleted(second.Index)
	assert.True(t, coord.AllDone())
	assert.False(t, coord.Exhausted())
}

func TestProgressFraction(t *testing.T) {
	coord := coordinator.New(makeRanges(4), 3)
	assert.Equal(t, 0.0, coord.ProgressFraction())

	chunk, _ := coord.ClaimNext()
	coord.MarkCompleted(chunk.Index)
	assert.InDelta(t, 0.25, coord.ProgressFraction(), 1e-9)

	for {
		next, ok := coord.ClaimNext()
		if !ok {
			break
		}
		coord.MarkCompleted(next.Index)
	}
	assert.Equal(t, 1.0, coord.ProgressFraction())
	assert.True(t, coord.AllDone())
}

func TestRelease(t *testing.T) {
	const maxRetries = 2
	coord := coordinator.New(makeRanges(1), maxRetries)

	chunk, ok := coord.ClaimNext()
	require.True(t, ok)
	coord.Release(chunk.Index)
	assert.Equal(t, coordinator.Pending, coord.StateOf(chunk.Index))

	// a release must not charge the retry budget
	for attempt := 0; attempt <= maxRetries; attempt++ {
		reclaimed, ok := coord.ClaimNext()
		require.True(t, ok)
		coord.MarkFailed(reclaimed.Index)
	}
	assert.Equal(t, coordinator.FailedPermanently, coord.StateOf(0))
}

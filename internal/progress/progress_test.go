package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swoopdl/swoop/internal/progress"
)

func TestRecordSuccess(t *testing.T) {
	agg := progress.NewAggregator(4)

	agg.Record(0, true, 1000, time.Second)
	agg.Record(1, true, 3000, time.Second)

	assert.Equal(t, 2, agg.CompletedCount())
	assert.Equal(t, 0, agg.FailedCount())
	assert.Equal(t, int64(4000), agg.DownloadedBytes())
	assert.InDelta(t, 0.5, agg.OverallProgress(), 1e-9)
	// unweighted mean of 1000 B/s and 3000 B/s
	assert.InDelta(t, 2000, agg.AverageThroughput(), 1e-6)
}

func TestDuplicateCompletionIgnored(t *testing.T) {
	agg := progress.NewAggregator(2)

	agg.Record(0, true, 500, time.Second)
	agg.Record(0, true, 500, time.Second)

	assert.Equal(t, 1, agg.CompletedCount())
	assert.Equal(t, int64(500), agg.DownloadedBytes())
	assert.InDelta(t, 0.5, agg.OverallProgress(), 1e-9)
}

func TestFailureThenSuccessClearsFailed(t *testing.T) {
	agg := progress.NewAggregator(1)

	agg.Record(0, false, 0, time.Second)
	agg.Record(0, false, 0, time.Second)
	assert.Equal(t, 1, agg.FailedCount())

	agg.Record(0, true, 100, time.Second)
	assert.Equal(t, 0, agg.FailedCount())
	assert.Equal(t, 1, agg.CompletedCount())
	assert.InDelta(t, 1.0, agg.OverallProgress(), 1e-9)
}

func TestThroughputSkipsZeroElapsed(t *testing.T) {
	agg := progress.NewAggregator(2)

	agg.Record(0, true, 100, 0)
	assert.Equal(t, 0.0, agg.AverageThroughput())

	agg.Record(1, true, 100, 100*time.Millisecond)
	assert.InDelta(t, 1000, agg.AverageThroughput(), 1e-6)
}

func TestStallClock(t *testing.T) {
	agg := progress.NewAggregator(1)

	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, agg.SinceLastUpdate(), 15*time.Millisecond)

	agg.Touch()
	assert.Less(t, agg.SinceLastUpdate(), 15*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	agg.Record(0, false, 0, time.Second)
	assert.Less(t, agg.SinceLastUpdate(), 15*time.Millisecond, "any recorded outcome counts as progress")
}

func TestEmptyAggregator(t *testing.T) {
	agg := progress.NewAggregator(0)
	assert.Equal(t, 0.0, agg.OverallProgress())
	assert.Equal(t, 0.0, agg.AverageThroughput())
	assert.Equal(t, 0, agg.FailedCount())
}

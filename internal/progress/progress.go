// Package progress aggregates per-chunk outcomes into shared counters used
// for reporting and stall detection.
package progress

import (
	"sync"
	"time"
)

type Aggregator struct {
	mu          sync.RWMutex
	totalChunks int
	completed   map[int]struct{}
	failed      map[int]struct{}
	speeds      map[int]float64
	downloaded  int64
	lastUpdate  time.Time
}

func NewAggregator(totalChunks int) *Aggregator {
	return &Aggregator{
		totalChunks: totalChunks,
		completed:   make(map[int]struct{}),
		failed:      make(map[int]struct{}),
		speeds:      make(map[int]float64),
		lastUpdate:  time.Now(),
	}
}

// Record notes the outcome of one chunk fetch attempt. Elapsed is measured
// from claim time to completion, so the derived throughput includes queue
// and connection setup time. Duplicate completions are ignored.
func (a *Aggregator) Record(index int, success bool, bytes int64, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastUpdate = time.Now()
	if success {
		if _, done := a.completed[index]; done {
			return
		}
		a.completed[index] = struct{}{}
		delete(a.failed, index)
		a.downloaded += bytes
		if secs := elapsed.Seconds(); secs > 0 {
			a.speeds[index] = float64(bytes) / secs
		}
		return
	}
	a.failed[index] = struct{}{}
}

// OverallProgress is the fraction of chunks completed, in [0, 1].
func (a *Aggregator) OverallProgress() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.totalChunks == 0 {
		return 0
	}
	return float64(len(a.completed)) / float64(a.totalChunks)
}

// AverageThroughput is the unweighted mean of per-chunk speeds across
// chunks that have reported at least once. With wildly uneven chunk
// durations this skews toward fast chunks; acceptable for near-equal sizes.
func (a *Aggregator) AverageThroughput() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.speeds) == 0 {
		return 0
	}
	var sum float64
	for _, speed := range a.speeds {
		sum += speed
	}
	return sum / float64(len(a.speeds))
}

func (a *Aggregator) CompletedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.completed)
}

func (a *Aggregator) FailedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.failed)
}

func (a *Aggregator) DownloadedBytes() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.downloaded
}

// SinceLastUpdate is the stall-detection input: time since any chunk
// reported an outcome.
func (a *Aggregator) SinceLastUpdate() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return time.Since(a.lastUpdate)
}

// Touch resets the stall timer without recording chunk activity.
func (a *Aggregator) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastUpdate = time.Now()
}

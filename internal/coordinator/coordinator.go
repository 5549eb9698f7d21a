// Package coordinator owns the chunk state registry for one download. It is
// the only component that mutates chunk state; every operation runs under a
// single mutex, which is coarse but correct for the small chunk counts in
// play (at most the connection limit).
package coordinator

import (
	"sync"

	"github.com/swoopdl/swoop/internal/partition"
	"github.com/swoopdl/swoop/internal/utils"
)

type State int

const (
	Pending State = iota
	Claimed
	Completed
	FailedPermanently
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Claimed:
		return "claimed"
	case Completed:
		return "completed"
	case FailedPermanently:
		return "failed-permanently"
	}
	return "unknown"
}

type Coordinator struct {
	mu         sync.Mutex
	ranges     []partition.Range
	states     []State
	retries    []int
	maxRetries int
}

func New(ranges []partition.Range, maxRetries int) *Coordinator {
	return &Coordinator{
		ranges:     ranges,
		states:     make([]State, len(ranges)),
		retries:    make([]int, len(ranges)),
		maxRetries: maxRetries,
	}
}

// ClaimNext transitions the first pending chunk to Claimed and returns it.
// A false return means no chunk is pending right now; more work may appear
// later when a retryable failure resets a chunk, so callers must not treat
// it as terminal.
func (c *Coordinator) ClaimNext() (partition.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, state := range c.states {
		if state == Pending {
			c.states[i] = Claimed
			return c.ranges[i], true
		}
	}
	return partition.Range{}, false
}

// MarkCompleted records a verified fetch. Calling it twice for the same
// chunk is a no-op, to tolerate duplicate completion signals.
func (c *Coordinator) MarkCompleted(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.states) {
		return
	}
	c.states[index] = Completed
}

// MarkFailed counts a failed attempt. Within the retry budget the chunk
// returns to Pending for re-claim; past it the chunk is parked in
// FailedPermanently and never dispatched again.
func (c *Coordinator) MarkFailed(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.states) || c.states[index] == Completed {
		return
	}
	c.retries[index]++
	if c.retries[index] <= c.maxRetries {
		c.states[index] = Pending
		return
	}
	c.states[index] = FailedPermanently
	log := utils.GetLogger("coordinator")
	log.Error().Int("chunkId", index).Int("maxRetries", c.maxRetries).Msg("Chunk failed permanently, retry budget exhausted")
}

// Release returns a claimed chunk to the pending set without charging its
// retry budget, for dispatch backpressure (the claim never reached a
// worker).
func (c *Coordinator) Release(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.states) {
		return
	}
	if c.states[index] == Claimed {
		c.states[index] = Pending
	}
}

// AllDone reports whether every chunk completed. A permanently failed chunk
// keeps this false forever; callers detect that case through Exhausted.
func (c *Coordinator) AllDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, state := range c.states {
		if state != Completed {
			return false
		}
	}
	return true
}

// Exhausted reports whether no further progress is possible: every chunk is
// terminal (Completed or FailedPermanently) and at least one failed.
func (c *Coordinator) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	failed := false
	for _, state := range c.states {
		switch state {
		case Pending, Claimed:
			return false
		case FailedPermanently:
			failed = true
		}
	}
	return failed
}

// ProgressFraction is chunk-count based, not byte-weighted. Chunks are
// near-equal in size, so the coarser measure is a documented trade-off.
func (c *Coordinator) ProgressFraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.states) == 0 {
		return 0
	}
	completed := 0
	for _, state := range c.states {
		if state == Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(c.states))
}

func (c *Coordinator) ChunkCount() int {
	return len(c.ranges)
}

func (c *Coordinator) FailedPermanentlyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, state := range c.states {
		if state == FailedPermanently {
			count++
		}
	}
	return count
}

func (c *Coordinator) StateOf(index int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.states) {
		return FailedPermanently
	}
	return c.states[index]
}

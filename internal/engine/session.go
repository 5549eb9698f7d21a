package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swoopdl/swoop/internal/config"
	"github.com/swoopdl/swoop/internal/coordinator"
	"github.com/swoopdl/swoop/internal/progress"
	"github.com/swoopdl/swoop/internal/utils"
)

type State int

const (
	StateInit State = iota
	StateProbing
	StateDispatching
	StateMerging
	StateCompleted
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateProbing:
		return "probing"
	case StateDispatching:
		return "dispatching"
	case StateMerging:
		return "merging"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

type Mode int

const (
	ModeParallel Mode = iota
	ModeSingleStream
)

func (m Mode) String() string {
	if m == ModeSingleStream {
		return "single-stream"
	}
	return "parallel"
}

// Session is the whole-download context: one per invocation, never reused.
// Terminal states are sticky.
type Session struct {
	ID         uuid.UUID
	URL        string
	OutputPath string
	Settings   config.Settings
	StartTime  time.Time

	mu        sync.RWMutex
	state     State
	mode      Mode
	totalSize int64
	failure   error

	cleanup sync.WaitGroup

	agg   *progress.Aggregator
	coord *coordinator.Coordinator
}

func NewSession(url, outputPath string, settings config.Settings) *Session {
	return &Session{
		ID:         uuid.New(),
		URL:        url,
		OutputPath: outputPath,
		Settings:   settings,
		StartTime:  time.Now(),
		state:      StateInit,
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	log := utils.GetLogger("session")
	log.Debug().Str("sessionId", s.ID.String()).Str("from", s.state.String()).Str("to", next.String()).Msg("State transition")
	s.state = next
}

func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) setMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

func (s *Session) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSize
}

func (s *Session) setTotalSize(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSize = size
}

// Failure returns the reason a session ended in StateFailed, if any.
func (s *Session) Failure() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

func (s *Session) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		s.failure = err
	}
}

// WaitCleanup blocks until any background scratch-file cleanup has finished.
// After a stop, part files are only removed once the abandoned fetches have
// drained, which can outlive the Download call itself.
func (s *Session) WaitCleanup() {
	s.cleanup.Wait()
}

func (s *Session) attach(coord *coordinator.Coordinator, agg *progress.Aggregator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord = coord
	s.agg = agg
}

// Snapshot is the pollable reporting surface: lifecycle state plus the
// latest aggregator counters.
type Snapshot struct {
	State           State
	Mode            Mode
	Progress        float64
	AvgThroughput   float64
	CompletedChunks int
	FailedChunks    int
	TotalChunks     int
	DownloadedBytes int64
	TotalSize       int64
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	coord, agg := s.coord, s.agg
	snap := Snapshot{
		State:     s.state,
		Mode:      s.mode,
		TotalSize: s.totalSize,
	}
	s.mu.RUnlock()
	if coord != nil {
		snap.Progress = coord.ProgressFraction()
		snap.TotalChunks = coord.ChunkCount()
	}
	if agg != nil {
		snap.AvgThroughput = agg.AverageThroughput()
		snap.CompletedChunks = agg.CompletedCount()
		snap.FailedChunks = agg.FailedCount()
		snap.DownloadedBytes = agg.DownloadedBytes()
	}
	return snap
}

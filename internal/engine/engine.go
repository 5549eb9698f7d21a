// Package engine drives the download lifecycle: capability probe, chunk
// dispatch, stall monitoring, single-stream fallback, merge, and cleanup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swoopdl/swoop/internal/assemble"
	"github.com/swoopdl/swoop/internal/config"
	"github.com/swoopdl/swoop/internal/coordinator"
	"github.com/swoopdl/swoop/internal/partition"
	"github.com/swoopdl/swoop/internal/pool"
	"github.com/swoopdl/swoop/internal/progress"
	"github.com/swoopdl/swoop/internal/transport"
	"github.com/swoopdl/swoop/internal/utils"
)

var ErrStopped = errors.New("download stopped")

type Engine struct {
	transport transport.Transport
	settings  config.Settings

	// Loop timings, overridable in tests.
	TickInterval   time.Duration
	ReportInterval time.Duration
	StallThreshold time.Duration

	// ShowProgress enables the live terminal display.
	ShowProgress bool
}

func New(t transport.Transport, settings config.Settings) *Engine {
	return &Engine{
		transport:      t,
		settings:       settings,
		TickInterval:   500 * time.Millisecond,
		ReportInterval: 500 * time.Millisecond,
		StallThreshold: 30 * time.Second,
	}
}

// Download runs one full session: validate, probe, fetch, merge. The
// returned session always reflects the terminal state; the error summarizes
// a Failed or Stopped outcome for the caller.
func (e *Engine) Download(ctx context.Context, rawURL string, outputPath string) (*Session, error) {
	log := utils.GetLogger("engine")
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(rawURL); err != nil || rawURL == "" {
		return nil, fmt.Errorf("invalid URL: %q", rawURL)
	}

	sess := NewSession(rawURL, outputPath, e.settings)
	sess.setState(StateProbing)
	capability, probeErr := e.transport.Probe(ctx, rawURL)
	if probeErr != nil {
		log.Warn().Err(probeErr).Msg("Capability probe failed, falling back to single stream")
	}

	outputPath, err := e.resolveOutputPath(outputPath, rawURL, capability)
	if err != nil {
		sess.setFailure(err)
		sess.setState(StateFailed)
		return sess, err
	}
	sess.OutputPath = outputPath
	sess.setTotalSize(capability.Size)

	if probeErr != nil || !capability.RangeSupported || capability.Size <= 0 {
		return e.singleStream(ctx, sess)
	}
	return e.parallel(ctx, sess, capability.Size)
}

// resolveOutputPath infers a file name when the caller gave none
// (Content-Disposition, then URL path) and renames on collision.
func (e *Engine) resolveOutputPath(outputPath, rawURL string, capability transport.Capability) (string, error) {
	if outputPath == "" {
		if capability.Filename != "" {
			outputPath = capability.Filename
		} else {
			parsedURL, err := url.Parse(rawURL)
			if err != nil {
				return "", fmt.Errorf("invalid URL: %v", err)
			}
			segments := strings.Split(strings.TrimSuffix(parsedURL.Path, "/"), "/")
			outputPath = segments[len(segments)-1]
		}
		if outputPath == "" {
			return "", fmt.Errorf("could not infer output file name, use --output")
		}
	}
	if err := config.ValidateOutputPath(outputPath); err != nil {
		return "", err
	}
	if err := config.EnsureOutputDir(outputPath); err != nil {
		return "", fmt.Errorf("error creating output directory: %v", err)
	}
	if _, err := os.Stat(outputPath); err == nil {
		outputPath = utils.RenewOutputPath(outputPath)
	}
	return outputPath, nil
}

func (e *Engine) singleStream(ctx context.Context, sess *Session) (*Session, error) {
	log := utils.GetLogger("engine")
	sess.setMode(ModeSingleStream)
	sess.setState(StateDispatching)
	log.Info().Str("url", sess.URL).Str("output", sess.OutputPath).Msg("Downloading as a single stream")

	err := e.transport.FetchRange(ctx, sess.URL, 0, transport.WholeResource, sess.OutputPath)
	if ctx.Err() != nil {
		sess.setState(StateStopped)
		os.Remove(sess.OutputPath)
		return sess, ErrStopped
	}
	if err != nil {
		sess.setFailure(err)
		sess.setState(StateFailed)
		os.Remove(sess.OutputPath)
		return sess, fmt.Errorf("single-stream download failed: %v", err)
	}
	sess.setState(StateCompleted)
	return sess, nil
}

func (e *Engine) parallel(ctx context.Context, sess *Session, totalSize int64) (*Session, error) {
	log := utils.GetLogger("engine")
	// Chunk size policy: honor the configured hint but never leave
	// connections idle, so chunks stay near-equal in size.
	chunkSize := e.settings.ChunkSize
	if even := (totalSize + int64(e.settings.Connections) - 1) / int64(e.settings.Connections); even > chunkSize {
		chunkSize = even
	}
	ranges := partition.Split(totalSize, chunkSize, e.settings.Connections)
	if len(ranges) == 0 {
		return e.singleStream(ctx, sess)
	}

	coord := coordinator.New(ranges, e.settings.MaxRetries)
	agg := progress.NewAggregator(len(ranges))
	sess.attach(coord, agg)

	workers := pool.New(e.settings.Connections, len(ranges))
	sess.setMode(ModeParallel)
	sess.setState(StateDispatching)
	log.Info().Str("url", sess.URL).Int64("size", totalSize).Int("chunks", len(ranges)).Int("connections", e.settings.Connections).Msg("Starting parallel download")

	// In-flight fetches are never cancelled mid-write; each carries its own
	// client timeout. Stop is observed between tasks and at the loop.
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	reporterDone := make(chan struct{})
	g.Go(func() error {
		e.reportLoop(sess, reporterDone)
		return nil
	})

	err := e.dispatchLoop(ctx, fetchCtx, sess, coord, agg, workers)
	close(reporterDone)
	g.Wait()

	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, ErrStopped):
		return sess, err
	default:
		sess.setFailure(err)
		sess.setState(StateFailed)
		assemble.RemoveParts(sess.OutputPath, len(ranges))
		return sess, err
	}
}

func (e *Engine) dispatchLoop(ctx, fetchCtx context.Context, sess *Session, coord *coordinator.Coordinator, agg *progress.Aggregator, workers *pool.Pool) error {
	log := utils.GetLogger("engine")
	ticker := time.NewTicker(e.TickInterval)
	defer ticker.Stop()

	e.dispatchPending(fetchCtx, sess, coord, agg, workers)
	for {
		select {
		case <-ctx.Done():
			sess.setState(StateStopped)
			// Abandoned fetches still run to completion and may create part
			// files after this point, so removal must wait for the drain.
			chunkCount := coord.ChunkCount()
			sess.cleanup.Add(1)
			go func() {
				defer sess.cleanup.Done()
				workers.Shutdown(true)
				assemble.RemoveParts(sess.OutputPath, chunkCount)
			}()
			return ErrStopped
		case <-ticker.C:
		}

		if coord.AllDone() {
			workers.Shutdown(true)
			return e.merge(sess, coord)
		}
		if coord.Exhausted() {
			workers.Shutdown(true)
			return fmt.Errorf("%d of %d chunks failed permanently", coord.FailedPermanentlyCount(), coord.ChunkCount())
		}
		if stalled := agg.SinceLastUpdate(); stalled > e.StallThreshold {
			// Advisory only: the per-call transport timeout will surface a
			// wedged fetch as a chunk failure, which requeues it through the
			// normal retry path.
			log.Warn().Dur("stalledFor", stalled).Msg("No chunk progress observed, waiting on in-flight fetches")
			agg.Touch()
		}
		e.dispatchPending(fetchCtx, sess, coord, agg, workers)
	}
}

// dispatchPending claims every currently pending chunk and hands it to the
// pool; this covers both first dispatch and retry requeues.
func (e *Engine) dispatchPending(fetchCtx context.Context, sess *Session, coord *coordinator.Coordinator, agg *progress.Aggregator, workers *pool.Pool) {
	for {
		chunk, ok := coord.ClaimNext()
		if !ok {
			return
		}
		task := e.chunkTask(fetchCtx, sess, coord, agg, chunk)
		if err := workers.Submit(task); err != nil {
			coord.Release(chunk.Index)
			return
		}
	}
}

func (e *Engine) chunkTask(fetchCtx context.Context, sess *Session, coord *coordinator.Coordinator, agg *progress.Aggregator, chunk partition.Range) pool.Task {
	log := utils.GetLogger("chunk").With().Int("chunkId", chunk.Index).Logger()
	return func() error {
		if sess.State() == StateStopped {
			return nil
		}
		claimedAt := time.Now()
		dest := assemble.PartFilePath(sess.OutputPath, chunk.Index)
		err := e.transport.FetchRange(fetchCtx, sess.URL, chunk.Start, chunk.End, dest)
		if err == nil {
			if info, statErr := os.Stat(dest); statErr != nil {
				err = fmt.Errorf("chunk file not created: %v", statErr)
			} else if info.Size() != chunk.Length() {
				err = fmt.Errorf("size mismatch: expected %d bytes, got %d", chunk.Length(), info.Size())
			}
		}
		if err != nil {
			coord.MarkFailed(chunk.Index)
			agg.Record(chunk.Index, false, 0, time.Since(claimedAt))
			log.Debug().Err(err).Msg("Chunk download failed")
			return fmt.Errorf("chunk %d: %v", chunk.Index, err)
		}
		coord.MarkCompleted(chunk.Index)
		agg.Record(chunk.Index, true, chunk.Length(), time.Since(claimedAt))
		log.Debug().Int64("bytes", chunk.Length()).Msg("Chunk download completed")
		return nil
	}
}

func (e *Engine) merge(sess *Session, coord *coordinator.Coordinator) error {
	log := utils.GetLogger("engine")
	sess.setState(StateMerging)
	chunkFiles := make([]string, coord.ChunkCount())
	for i := range chunkFiles {
		chunkFiles[i] = assemble.PartFilePath(sess.OutputPath, i)
	}
	if err := assemble.Merge(chunkFiles, sess.OutputPath, e.settings.BufferSize); err != nil {
		return fmt.Errorf("error assembling file: %v", err)
	}
	if !assemble.ValidateSize(sess.OutputPath, sess.TotalSize()) {
		return fmt.Errorf("merged file size does not match expected %d bytes", sess.TotalSize())
	}
	assemble.RemoveParts(sess.OutputPath, coord.ChunkCount())
	sess.setState(StateCompleted)
	log.Info().Str("output", sess.OutputPath).Int64("size", sess.TotalSize()).Msg("Download completed")
	return nil
}

// Clean removes leftover transient files for an output path, for the
// --clean maintenance command.
func Clean(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path required for cleanup")
	}
	if abs, err := filepath.Abs(outputPath); err == nil {
		outputPath = abs
	}
	return utils.CleanParts(outputPath)
}

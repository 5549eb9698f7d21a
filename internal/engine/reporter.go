package engine

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/swoopdl/swoop/internal/utils"
)

// reportLoop periodically renders the session snapshot. With ShowProgress
// off it only emits debug logs, which is what batch mode and tests want.
func (e *Engine) reportLoop(sess *Session, done <-chan struct{}) {
	log := utils.GetLogger("progress")
	ticker := time.NewTicker(e.ReportInterval)
	defer ticker.Stop()
	rendered := false
	for {
		select {
		case <-done:
			if e.ShowProgress {
				e.renderSnapshot(sess, rendered)
			}
			return
		case <-ticker.C:
			snap := sess.Snapshot()
			log.Debug().
				Str("state", snap.State.String()).
				Float64("progress", snap.Progress).
				Int("completed", snap.CompletedChunks).
				Int("failed", snap.FailedChunks).
				Msg("Progress snapshot")
			if e.ShowProgress {
				e.renderSnapshot(sess, rendered)
				rendered = true
			}
		}
	}
}

func (e *Engine) renderSnapshot(sess *Session, redraw bool) {
	snap := sess.Snapshot()
	if redraw {
		fmt.Print("\033[1A\033[J")
	}
	name := filepath.Base(sess.OutputPath)
	var line string
	switch {
	case snap.State == StateCompleted:
		line = fmt.Sprintf("%s %s %s", utils.FSuccess(utils.StyleSymbols["pass"]), name,
			utils.FDetail(utils.FormatBytes(uint64(snap.TotalSize))))
	case snap.State == StateFailed:
		line = fmt.Sprintf("%s %s download failed", utils.FError(utils.StyleSymbols["fail"]), name)
	case snap.State == StateStopped:
		line = fmt.Sprintf("%s %s stopped", utils.FError(utils.StyleSymbols["warning"]), name)
	case snap.Mode == ModeSingleStream:
		line = fmt.Sprintf("%s %s %s", utils.FPending(utils.StyleSymbols["pending"]), name,
			utils.FDetail("single stream"))
	default:
		line = fmt.Sprintf("%s %s %.1f%% (%d/%d chunks) %s", utils.FPending(utils.StyleSymbols["pending"]), name,
			snap.Progress*100, snap.CompletedChunks, snap.TotalChunks,
			utils.FDetail(utils.FormatSpeed(snap.AvgThroughput)))
	}
	fmt.Println(utils.TruncateLine(line, utils.TerminalWidth()))
}

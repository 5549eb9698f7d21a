// Package assemble concatenates downloaded chunk files into the final
// output, in chunk-index order, through a scratch file that atomically
// replaces the destination on success.
package assemble

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/swoopdl/swoop/internal/utils"
)

var ErrNoValidChunks = errors.New("no valid chunk files to merge")

// PartFilePath names the transient file for one chunk of outputPath.
func PartFilePath(outputPath string, index int) string {
	return fmt.Sprintf("%s.part%d", outputPath, index)
}

// extractIndex parses the chunk index from a ".part<N>" suffix. Files
// without a parseable index are rejected rather than guessed at; a wrong
// guess would silently misorder the output.
func extractIndex(path string) (int, error) {
	matches := utils.PartFileRegex.FindStringSubmatch(path)
	if len(matches) < 2 {
		return -1, fmt.Errorf("could not extract chunk index from %s", path)
	}
	return strconv.Atoi(matches[1])
}

// Merge concatenates the given chunk files into outputPath in chunk-index
// order, regardless of the order they are supplied in. Missing or empty
// chunk files are dropped with a warning; if none survive, the merge fails
// and any pre-existing destination is left untouched.
func Merge(chunkFiles []string, outputPath string, bufferSize int) error {
	log := utils.GetLogger("assemble")
	if bufferSize <= 0 {
		bufferSize = utils.DefaultBufferSize
	}

	type part struct {
		path  string
		index int
	}
	var parts []part
	for _, chunkFile := range chunkFiles {
		index, err := extractIndex(chunkFile)
		if err != nil {
			return err
		}
		info, err := os.Stat(chunkFile)
		if err != nil || info.Size() == 0 {
			log.Warn().Str("file", chunkFile).Msg("Chunk file missing or empty, skipping")
			continue
		}
		parts = append(parts, part{path: chunkFile, index: index})
	}
	if len(parts) == 0 {
		return ErrNoValidChunks
	}
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].index < parts[j].index
	})

	tempPath := outputPath + ".tmp"
	destFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("error creating merge scratch file: %v", err)
	}

	buffer := make([]byte, bufferSize)
	var totalWritten int64
	for _, p := range parts {
		written, err := appendChunk(destFile, p.path, buffer)
		if err != nil {
			destFile.Close()
			os.Remove(tempPath)
			return err
		}
		totalWritten += written
		log.Debug().Int("chunkId", p.index).Int64("bytes", written).Msg("Chunk merged")
	}
	if err := destFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error closing merge scratch file: %v", err)
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error finalizing output file: %v", err)
	}
	log.Debug().Int("chunks", len(parts)).Int64("bytes", totalWritten).Str("output", outputPath).Msg("Merge completed")
	return nil
}

func appendChunk(dest *os.File, chunkPath string, buffer []byte) (int64, error) {
	chunkFile, err := os.Open(chunkPath)
	if err != nil {
		return 0, fmt.Errorf("error opening chunk file %s: %v", chunkPath, err)
	}
	defer chunkFile.Close()
	written, err := io.CopyBuffer(dest, chunkFile, buffer)
	if err != nil {
		return written, fmt.Errorf("error copying chunk data from %s: %v", chunkPath, err)
	}
	return written, nil
}

// ValidateSize checks the merged file against the expected resource size.
func ValidateSize(outputPath string, expectedSize int64) bool {
	info, err := os.Stat(outputPath)
	if err != nil {
		return false
	}
	return info.Size() == expectedSize
}

// RemoveParts deletes the transient chunk files after a merge or stop.
func RemoveParts(outputPath string, count int) {
	for i := 0; i < count; i++ {
		os.Remove(PartFilePath(outputPath, i))
	}
}

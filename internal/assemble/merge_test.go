package assemble_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swoopdl/swoop/internal/assemble"
)

func writePart(t *testing.T, output string, index int, content string) string {
	t.Helper()
	path := assemble.PartFilePath(output, index)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMergeOrdersByChunkIndex(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")

	// supplied deliberately out of order
	files := []string{
		writePart(t, output, 2, "C"),
		writePart(t, output, 0, "A"),
		writePart(t, output, 1, "B"),
	}

	require.NoError(t, assemble.Merge(files, output, 0))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(data))
	assert.True(t, assemble.ValidateSize(output, 3))

	_, err = os.Stat(output + ".tmp")
	assert.True(t, os.IsNotExist(err), "scratch file must not survive a successful merge")
}

func TestMergeDoubleDigitIndices(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")

	var files []string
	// indices 0..11 so lexical ordering (part1, part10, part11, part2...)
	// would scramble the output
	want := ""
	for i := 0; i < 12; i++ {
		content := string(rune('a' + i))
		files = append(files, writePart(t, output, i, content))
		want += content
	}

	require.NoError(t, assemble.Merge(files, output, 64))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestMergeAllInvalid(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")

	missing := assemble.PartFilePath(output, 0)
	empty := writePart(t, output, 1, "")

	err := assemble.Merge([]string{missing, empty}, output, 0)
	assert.ErrorIs(t, err, assemble.ErrNoValidChunks)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "no output file may be created")
}

func TestMergePreservesExistingDestinationOnFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")
	require.NoError(t, os.WriteFile(output, []byte("original"), 0644))

	empty := writePart(t, output, 0, "")
	err := assemble.Merge([]string{empty}, output, 0)
	require.Error(t, err)

	data, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(data))
}

func TestMergeSkipsInvalidChunks(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")

	files := []string{
		writePart(t, output, 0, "A"),
		writePart(t, output, 1, ""), // dropped with a warning
		writePart(t, output, 2, "C"),
	}

	require.NoError(t, assemble.Merge(files, output, 0))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "AC", string(data))
}

func TestMergeRejectsUnparsableName(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "result.bin")
	bogus := filepath.Join(dir, "result.bin.partX")
	require.NoError(t, os.WriteFile(bogus, []byte("A"), 0644))

	err := assemble.Merge([]string{bogus}, output, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk index")
}

func TestRemoveParts(t *testing.T) {
	output := filepath.Join(t.TempDir(), "result.bin")
	for i := 0; i < 3; i++ {
		writePart(t, output, i, "x")
	}

	assemble.RemoveParts(output, 3)
	for i := 0; i < 3; i++ {
		_, err := os.Stat(assemble.PartFilePath(output, i))
		assert.True(t, os.IsNotExist(err), "part %d should be removed", i)
	}
}

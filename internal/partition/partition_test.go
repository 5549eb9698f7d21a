package partition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swoopdl/swoop/internal/partition"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name        string
		totalSize   int64
		chunkSize   int64
		connections int
		want        []partition.Range
	}{
		{
			name:        "remainder absorbed by last chunk",
			totalSize:   10,
			chunkSize:   4,
			connections: 3,
			want: []partition.Range{
				{Index: 0, Start: 0, End: 3},
				{Index: 1, Start: 4, End: 7},
				{Index: 2, Start: 8, End: 9},
			},
		},
		{
			name:        "last chunk absorbs large remainder",
			totalSize:   100,
			chunkSize:   10,
			connections: 3,
			want: []partition.Range{
				{Index: 0, Start: 0, End: 9},
				{Index: 1, Start: 10, End: 19},
				{Index: 2, Start: 20, End: 99},
			},
		},
		{
			name:        "single connection takes everything",
			totalSize:   10,
			chunkSize:   4,
			connections: 1,
			want: []partition.Range{
				{Index: 0, Start: 0, End: 9},
			},
		},
		{
			name:        "fewer chunks than connections when size runs out",
			totalSize:   6,
			chunkSize:   4,
			connections: 4,
			want: []partition.Range{
				{Index: 0, Start: 0, End: 3},
				{Index: 1, Start: 4, End: 5},
			},
		},
		{
			name:        "exact fit",
			totalSize:   12,
			chunkSize:   4,
			connections: 3,
			want: []partition.Range{
				{Index: 0, Start: 0, End: 3},
				{Index: 1, Start: 4, End: 7},
				{Index: 2, Start: 8, End: 11},
			},
		},
		{
			name:        "zero total size",
			totalSize:   0,
			chunkSize:   4,
			connections: 3,
			want:        nil,
		},
		{
			name:        "zero connections",
			totalSize:   10,
			chunkSize:   4,
			connections: 0,
			want:        nil,
		},
		{
			name:        "negative total size",
			totalSize:   -5,
			chunkSize:   4,
			connections: 3,
			want:        nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := partition.Split(tt.totalSize, tt.chunkSize, tt.connections)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Any valid input must produce ranges that partition [0, totalSize) exactly:
// no gaps, no overlaps, lengths summing to the total.
func TestSplitCompleteness(t *testing.T) {
	cases := []struct {
		totalSize   int64
		chunkSize   int64
		connections int
	}{
		{1, 1, 1},
		{1, 1024, 16},
		{10, 3, 4},
		{1000, 64, 8},
		{1 << 20, 4096, 16},
		{(1 << 20) + 7, 65536, 5},
	}
	for _, tc := range cases {
		ranges := partition.Split(tc.totalSize, tc.chunkSize, tc.connections)
		require.NotEmpty(t, ranges, "totalSize=%d chunkSize=%d connections=%d", tc.totalSize, tc.chunkSize, tc.connections)

		var sum int64
		var next int64
		for i, r := range ranges {
			assert.Equal(t, i, r.Index)
			assert.Equal(t, next, r.Start, "range %d must start where the previous ended", i)
			require.LessOrEqual(t, r.Start, r.End)
			sum += r.Length()
			next = r.End + 1
		}
		assert.Equal(t, tc.totalSize, sum)
		assert.Equal(t, tc.totalSize-1, ranges[len(ranges)-1].End)
		assert.LessOrEqual(t, len(ranges), tc.connections)
	}
}

func TestSplitDeterministic(t *testing.T) {
	first := partition.Split(999983, 4096, 7)
	second := partition.Split(999983, 4096, 7)
	assert.Equal(t, first, second)
}

// Package partition splits a known resource size into contiguous byte
// ranges, one per connection. The split is deterministic and side-effect
// free; the last range always absorbs the remainder so the union of all
// ranges covers the resource exactly.
package partition

// Range is a contiguous byte range [Start, End] (inclusive) of the target
// resource. Ranges are immutable once created.
type Range struct {
	Index int
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// Split partitions [0, totalSize) into at most connections ranges of
// roughly chunkSize bytes each. Degenerate inputs yield an empty slice,
// which callers must treat as "nothing to parallelize".
func Split(totalSize int64, chunkSize int64, connections int) []Range {
	if totalSize <= 0 || chunkSize <= 0 || connections <= 0 {
		return nil
	}
	var ranges []Range
	for i := 0; i < connections; i++ {
		start := int64(i) * chunkSize
		if start >= totalSize {
			break
		}
		end := start + chunkSize - 1
		if end >= totalSize {
			end = totalSize - 1
		}
		if i == connections-1 {
			end = totalSize - 1
		}
		ranges = append(ranges, Range{Index: len(ranges), Start: start, End: end})
	}
	return ranges
}

package zpl2pdf

// DefaultMaxBatchSize is the renderer's labels-per-request cap.
const DefaultMaxBatchSize = 50

// chunkRange is a half-open [Start, End) slice of the unique-block list.
type chunkRange struct {
	Start int
	End   int
}

// size returns the number of unique blocks covered by the range.
func (c chunkRange) size() int { return c.End - c.Start }

// planChunks partitions [0, uniqueCount) into contiguous ranges of at most
// maxBatchSize blocks each. Deterministic, no I/O: ceil(uniqueCount /
// maxBatchSize) ranges covering the interval exactly.
func planChunks(uniqueCount, maxBatchSize int) []chunkRange {
	if uniqueCount <= 0 || maxBatchSize < 1 {
		return nil
	}

	ranges := make([]chunkRange, 0, (uniqueCount+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < uniqueCount; start += maxBatchSize {
		end := min(start+maxBatchSize, uniqueCount)
		ranges = append(ranges, chunkRange{Start: start, End: end})
	}
	return ranges
}

// chunkForBlock resolves a unique-block id to its chunk number and the
// zero-based page within that chunk's rendered output.
func chunkForBlock(uniqueBlockID, maxBatchSize int) (chunkNumber, pageWithinChunk int) {
	return uniqueBlockID / maxBatchSize, uniqueBlockID % maxBatchSize
}

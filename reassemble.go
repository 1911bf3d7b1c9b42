package zpl2pdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// mergeChunks rebuilds the final document from per-chunk renderer output.
//
// sequence holds one unique-block id per output page; each id resolves to
// (chunk, page-within-chunk) by div/mod on maxBatchSize. The same source
// page is appended once per duplicate, and pages interleave across chunks
// exactly as the submission interleaved its blocks. Any missing or
// unreadable chunk fails the whole merge: there is no partial document.
func mergeChunks(chunks [][]byte, sequence []int, maxBatchSize int) ([]byte, error) {
	if len(sequence) == 0 {
		return nil, fmt.Errorf("%w: empty page sequence", ErrReassembly)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCounts := make([]int, len(chunks))
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has no output", ErrReassembly, i)
		}
		n, err := api.PageCount(bytes.NewReader(chunk), conf)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d unreadable: %v", ErrReassembly, i, err)
		}
		pageCounts[i] = n
	}

	// A single chunk whose pages already match the sequence needs no
	// splitting; the renderer output is the final document.
	if len(chunks) == 1 && isIdentity(sequence, pageCounts[0]) {
		return chunks[0], nil
	}

	// Extract each referenced page once; duplicates reuse the buffer.
	type pageKey struct{ chunk, page int }
	extracted := make(map[pageKey][]byte)
	readers := make([]io.ReadSeeker, 0, len(sequence))

	for _, id := range sequence {
		chunkNo, page := chunkForBlock(id, maxBatchSize)
		if chunkNo >= len(chunks) {
			return nil, fmt.Errorf("%w: block %d maps to chunk %d, have %d chunks", ErrReassembly, id, chunkNo, len(chunks))
		}
		if page >= pageCounts[chunkNo] {
			return nil, fmt.Errorf("%w: block %d maps to page %d of chunk %d, which has %d pages",
				ErrReassembly, id, page+1, chunkNo, pageCounts[chunkNo])
		}

		key := pageKey{chunkNo, page}
		single, ok := extracted[key]
		if !ok {
			var buf bytes.Buffer
			selected := []string{strconv.Itoa(page + 1)}
			if err := api.Trim(bytes.NewReader(chunks[chunkNo]), &buf, selected, conf); err != nil {
				return nil, fmt.Errorf("%w: extracting page %d of chunk %d: %v", ErrReassembly, page+1, chunkNo, err)
			}
			single = buf.Bytes()
			extracted[key] = single
		}
		readers = append(readers, bytes.NewReader(single))
	}

	if len(readers) == 1 {
		chunkNo, page := chunkForBlock(sequence[0], maxBatchSize)
		return extracted[pageKey{chunkNo, page}], nil
	}

	var merged bytes.Buffer
	if err := api.MergeRaw(readers, &merged, false, conf); err != nil {
		return nil, fmt.Errorf("%w: merging %d pages: %v", ErrReassembly, len(readers), err)
	}
	return merged.Bytes(), nil
}

// isIdentity reports whether sequence is exactly 0,1,...,pageCount-1.
func isIdentity(sequence []int, pageCount int) bool {
	if len(sequence) != pageCount {
		return false
	}
	for i, id := range sequence {
		if id != i {
			return false
		}
	}
	return true
}

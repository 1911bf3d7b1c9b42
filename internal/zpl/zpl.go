// Package zpl extracts label blocks from raw ZPL markup, normalizes them,
// and collapses duplicates while preserving the original emission order.
package zpl

import (
	"regexp"
	"strconv"
	"strings"
)

// Label block delimiters.
const (
	StartMarker = "^XA"
	EndMarker   = "^XZ"
)

// DefaultCopies is used when a block has no ^PQ command or an unusable one.
const DefaultCopies = 1

var (
	// blockRe matches one complete label block. Unopened or unclosed
	// fragments are skipped; flagging them is the linter's job.
	blockRe = regexp.MustCompile(`(?s)\^XA.*?\^XZ`)

	// quantityRe matches a ^PQ command up to the next caret. The first
	// comma-separated parameter is the print quantity; the rest
	// (pause, replicates, override) do not affect page count here.
	quantityRe = regexp.MustCompile(`\^PQ[ \t]*([^\^]*)`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Block is one label definition in emission order.
type Block struct {
	RawIndex int    // position among extracted blocks
	Content  string // normalized markup, ^PQ stripped
	Copies   int    // requested print quantity, always >= 1
}

// Document is the deduplicated form of a submission.
//
// Unique holds normalized block content indexed by unique-block id, in
// first-occurrence order. Sequence holds one unique-block id per output
// page: its length equals the total label count including repeats.
type Document struct {
	Unique   []string
	Sequence []int
}

// UniqueCount returns the number of distinct blocks.
func (d *Document) UniqueCount() int { return len(d.Unique) }

// TotalLabels returns the total page count including repeats.
func (d *Document) TotalLabels() int { return len(d.Sequence) }

// ExtractBlocks parses raw markup into normalized blocks in emission order.
// Returns an empty slice when no complete block exists.
func ExtractBlocks(raw string) []Block {
	matches := blockRe.FindAllString(raw, -1)
	blocks := make([]Block, 0, len(matches))
	for i, m := range matches {
		blocks = append(blocks, Block{
			RawIndex: i,
			Content:  normalize(quantityRe.ReplaceAllString(m, "")),
			Copies:   parseCopies(m),
		})
	}
	return blocks
}

// Extract deduplicates the blocks of a raw submission.
//
// Two blocks whose normalized content matches exactly share one unique-block
// id, even when their ^PQ quantities differ. An empty or block-free input
// yields an empty Document, not an error; the caller decides whether that
// is acceptable.
func Extract(raw string) *Document {
	doc := &Document{}
	ids := make(map[string]int)

	for _, b := range ExtractBlocks(raw) {
		id, ok := ids[b.Content]
		if !ok {
			id = len(doc.Unique)
			ids[b.Content] = id
			doc.Unique = append(doc.Unique, b.Content)
		}
		for range b.Copies {
			doc.Sequence = append(doc.Sequence, id)
		}
	}
	return doc
}

// normalize strips line breaks, collapses whitespace runs, and forces the
// start/end markers to appear exactly once at the boundaries.
func normalize(block string) string {
	s := whitespaceRe.ReplaceAllString(block, " ")
	s = strings.ReplaceAll(s, StartMarker, "")
	s = strings.ReplaceAll(s, EndMarker, "")
	return StartMarker + strings.TrimSpace(s) + EndMarker
}

// parseCopies extracts the print quantity from a block's first ^PQ command.
// Non-numeric, zero, and negative values fall back to DefaultCopies: a block
// the caller wrote into the markup is never silently dropped.
func parseCopies(block string) int {
	m := quantityRe.FindStringSubmatch(block)
	if m == nil {
		return DefaultCopies
	}
	first, _, _ := strings.Cut(m[1], ",")
	n, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || n < 1 {
		return DefaultCopies
	}
	return n
}

package zpl2pdf

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// makePDF builds an in-memory PDF with one page per label text, standing in
// for a rendered chunk.
func makePDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Text(72, 72, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building fixture PDF: %v", err)
	}
	return buf.Bytes()
}

// makeSizedPDF builds an in-memory PDF with one page per height, so tests
// can read the merged page order back from the page dimensions.
func makeSizedPDF(t *testing.T, heights ...float64) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "pt", "A4", "")
	for _, h := range heights {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: 400, Ht: h})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("building fixture PDF: %v", err)
	}
	return buf.Bytes()
}

// pageHeights reads the per-page heights of a merged document, in order.
func pageHeights(t *testing.T, doc []byte) []float64 {
	t.Helper()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(doc), conf)
	if err != nil {
		t.Fatalf("reading merged document: %v", err)
	}
	heights := make([]float64, len(dims))
	for i, d := range dims {
		heights[i] = d.Height
	}
	return heights
}

// pageCount reads the page count of a merged document.
func pageCount(t *testing.T, doc []byte) int {
	t.Helper()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(doc), conf)
	if err != nil {
		t.Fatalf("reading merged document: %v", err)
	}
	return n
}

func TestMergeChunks_IdentityPassthrough(t *testing.T) {
	t.Parallel()

	// One chunk whose pages already match the sequence is returned as-is.
	chunk := makePDF(t, "a", "b", "c")
	got, err := mergeChunks([][]byte{chunk}, []int{0, 1, 2}, DefaultMaxBatchSize)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}
	if !bytes.Equal(got, chunk) {
		t.Error("identity sequence should return the chunk unchanged")
	}
}

func TestMergeChunks_DuplicateExpansion(t *testing.T) {
	t.Parallel()

	// Sequence [0,1,1,0]: four pages from a two-page chunk.
	chunk := makePDF(t, "a", "b")
	got, err := mergeChunks([][]byte{chunk}, []int{0, 1, 1, 0}, DefaultMaxBatchSize)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}
	if n := pageCount(t, got); n != 4 {
		t.Errorf("merged page count = %d, want 4", n)
	}
}

func TestMergeChunks_InterleavedAcrossChunks(t *testing.T) {
	t.Parallel()

	// maxBatchSize=2: ids 0,1 live in chunk 0; id 2 in chunk 1.
	chunks := [][]byte{
		makePDF(t, "block-0", "block-1"),
		makePDF(t, "block-2"),
	}
	got, err := mergeChunks(chunks, []int{2, 0, 1, 2}, 2)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}
	if n := pageCount(t, got); n != 4 {
		t.Errorf("merged page count = %d, want 4", n)
	}
}

func TestMergeChunks_PreservesSequenceOrder(t *testing.T) {
	t.Parallel()

	// maxBatchSize=2: ids 0,1 live in chunk 0; id 2 in chunk 1. Each page
	// carries a distinct height, so the merged order is observable, not
	// just the count.
	chunks := [][]byte{
		makeSizedPDF(t, 100, 200),
		makeSizedPDF(t, 300),
	}
	got, err := mergeChunks(chunks, []int{2, 0, 1, 2}, 2)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}

	want := []float64{300, 100, 200, 300}
	heights := pageHeights(t, got)
	if len(heights) != len(want) {
		t.Fatalf("merged page count = %d, want %d", len(heights), len(want))
	}
	for i := range want {
		if math.Abs(heights[i]-want[i]) > 1 {
			t.Errorf("page %d height = %.0f, want %.0f", i, heights[i], want[i])
		}
	}
}

func TestMergeChunks_SinglePageDocument(t *testing.T) {
	t.Parallel()

	chunk := makePDF(t, "only")
	got, err := mergeChunks([][]byte{chunk}, []int{0}, DefaultMaxBatchSize)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}
	if n := pageCount(t, got); n != 1 {
		t.Errorf("merged page count = %d, want 1", n)
	}
}

func TestMergeChunks_Failures(t *testing.T) {
	t.Parallel()

	valid := makePDF(t, "a")

	tests := []struct {
		name         string
		chunks       [][]byte
		sequence     []int
		maxBatchSize int
	}{
		{
			name:         "empty sequence",
			chunks:       [][]byte{valid},
			sequence:     nil,
			maxBatchSize: 50,
		},
		{
			name:         "missing chunk output",
			chunks:       [][]byte{valid, nil},
			sequence:     []int{0},
			maxBatchSize: 50,
		},
		{
			name:         "corrupt chunk",
			chunks:       [][]byte{[]byte("not a pdf")},
			sequence:     []int{0},
			maxBatchSize: 50,
		},
		{
			name:         "sequence outside chunk list",
			chunks:       [][]byte{valid},
			sequence:     []int{60},
			maxBatchSize: 50,
		},
		{
			name:         "sequence outside chunk pages",
			chunks:       [][]byte{valid},
			sequence:     []int{1},
			maxBatchSize: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := mergeChunks(tt.chunks, tt.sequence, tt.maxBatchSize)
			if !errors.Is(err, ErrReassembly) {
				t.Errorf("mergeChunks() error = %v, want ErrReassembly", err)
			}
		})
	}
}

func TestMergeChunks_LargeDuplicateFanout(t *testing.T) {
	t.Parallel()

	// One unique block expanded many times: extraction must happen once,
	// the merged output once per sequence entry.
	chunk := makePDF(t, "dup")
	sequence := make([]int, 25)
	got, err := mergeChunks([][]byte{chunk}, sequence, DefaultMaxBatchSize)
	if err != nil {
		t.Fatalf("mergeChunks() error: %v", err)
	}
	if n := pageCount(t, got); n != 25 {
		t.Errorf("merged page count = %d, want 25", n)
	}
}

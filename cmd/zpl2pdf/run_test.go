package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/alnah/go-zpl2pdf/internal/config"
)

// newFakeLabelary serves a PDF with one page per ^XA block in the request
// body, mimicking the real rendering API.
func newFakeLabelary(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		blocks := strings.Count(string(body), "^XA")
		if blocks == 0 {
			http.Error(w, "ERROR: no labels", http.StatusBadRequest)
			return
		}

		pdf := gofpdf.New("P", "pt", "A4", "")
		pdf.SetFont("Helvetica", "", 12)
		for i := 0; i < blocks; i++ {
			pdf.AddPage()
			pdf.Text(72, 72, fmt.Sprintf("label %d", i))
		}
		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(buf.Bytes()) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func outputPageCount(t *testing.T, path string) int {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		t.Fatalf("output is not a readable PDF: %v", err)
	}
	return n
}

func TestRun_EndToEnd(t *testing.T) {
	srv := newFakeLabelary(t)
	dir := t.TempDir()

	// Two unique labels, the first printed twice: 3 output pages.
	input := filepath.Join(dir, "orders.zpl")
	zpl := "^XA^FDorder-1^FS^PQ2^XZ\n^XA^FDorder-2^FS^XZ"
	if err := os.WriteFile(input, []byte(zpl), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	output := filepath.Join(dir, "orders.pdf")

	flags, positional, err := parseConvertFlags([]string{
		"--renderer-url", srv.URL,
		"--tier", "high",
		"-o", output,
		"-q",
		input,
	})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), positional, flags, testDeps(&stdout, &stderr)); err != nil {
		t.Fatalf("run() error: %v (stderr: %s)", err, stderr.String())
	}

	if n := outputPageCount(t, output); n != 3 {
		t.Errorf("output page count = %d, want 3", n)
	}
}

func TestRun_DirectoryBatch(t *testing.T) {
	srv := newFakeLabelary(t)
	dir := t.TempDir()

	inDir := filepath.Join(dir, "in")
	if err := os.MkdirAll(inDir, 0750); err != nil {
		t.Fatalf("setup: %v", err)
	}
	for i := 0; i < 3; i++ {
		path := filepath.Join(inDir, fmt.Sprintf("batch-%d.zpl", i))
		if err := os.WriteFile(path, []byte("^XA^FDone^FS^XZ"), 0644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	outDir := filepath.Join(dir, "out")

	flags, positional, err := parseConvertFlags([]string{
		"--renderer-url", srv.URL,
		"-o", outDir,
		"-q",
		inDir,
	})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), positional, flags, testDeps(&stdout, &stderr)); err != nil {
		t.Fatalf("run() error: %v (stderr: %s)", err, stderr.String())
	}

	for i := 0; i < 3; i++ {
		out := filepath.Join(outDir, fmt.Sprintf("batch-%d.pdf", i))
		if n := outputPageCount(t, out); n != 1 {
			t.Errorf("%s: page count = %d, want 1", out, n)
		}
	}
}

func TestRun_NoInput(t *testing.T) {
	flags, positional, err := parseConvertFlags([]string{"-q"})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), positional, flags, testDeps(&stdout, &stderr))
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("run() error = %v, want ErrNoInput", err)
	}
}

func TestRun_InvalidTier(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.zpl")
	if err := os.WriteFile(input, []byte("^XA^XZ"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	flags, positional, err := parseConvertFlags([]string{"--tier", "urgent", input})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), positional, flags, testDeps(&stdout, &stderr))
	if !errors.Is(err, ErrUnknownTier) {
		t.Errorf("run() error = %v, want ErrUnknownTier", err)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	srv := newFakeLabelary(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "conf.yaml")
	content := fmt.Sprintf("renderer:\n  url: %q\nlabel:\n  size: \"2x1\"\n  density: 12\n", srv.URL)
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	input := filepath.Join(dir, "a.zpl")
	if err := os.WriteFile(input, []byte("^XA^FDx^FS^XZ"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	flags, positional, err := parseConvertFlags([]string{"-c", configPath, "-q", input})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), positional, flags, testDeps(&stdout, &stderr)); err != nil {
		t.Fatalf("run() error: %v (stderr: %s)", err, stderr.String())
	}

	if n := outputPageCount(t, filepath.Join(dir, "a.pdf")); n != 1 {
		t.Errorf("page count = %d, want 1", n)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	flags, positional, err := parseConvertFlags([]string{"-c", "/nonexistent/conf.yaml", "in.zpl"})
	if err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), positional, flags, testDeps(&stdout, &stderr))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("run() error = %v, want ErrConfigNotFound", err)
	}
}

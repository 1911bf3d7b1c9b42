package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	zpl2pdf "github.com/alnah/go-zpl2pdf"
	"github.com/alnah/go-zpl2pdf/internal/config"
	"github.com/alnah/go-zpl2pdf/internal/yamlutil"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrReadInput          = errors.New("failed to read label file")
	ErrWriteOutput        = errors.New("failed to write output file")
	ErrInvalidExtension   = errors.New("file must have .zpl or .txt extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrUnknownTier        = errors.New("unknown tier")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// maxWorkers bounds --workers to keep file handles and memory sane.
const maxWorkers = 32

// Converter is the interface for the conversion service.
type Converter interface {
	Convert(ctx context.Context, input zpl2pdf.Input) (*zpl2pdf.Result, error)
}

// Compile-time interface implementation check.
var _ Converter = (*zpl2pdf.Converter)(nil)

// FileToConvert represents a single file to process.
type FileToConvert struct {
	InputPath  string
	OutputPath string
}

// ConversionResult holds the outcome of a single conversion.
type ConversionResult struct {
	InputPath  string
	OutputPath string
	Labels     int
	Chunks     int
	Err        error
	Duration   time.Duration
}

// run orchestrates the conversion process.
func run(ctx context.Context, positionalArgs []string, flags *convertFlags, deps *Dependencies) error {
	if flags.initConfig != "" {
		return writeDefaultConfig(flags.initConfig, deps)
	}

	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	// Load configuration
	cfg := config.DefaultConfig()
	var err error
	if flags.common.config != "" {
		cfg, err = config.LoadConfig(flags.common.config)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	// Merge CLI flags into config (CLI wins)
	if err := mergeFlags(flags, cfg); err != nil {
		return err
	}

	tier, err := parseTier(flags.job.tier)
	if err != nil {
		return err
	}

	// Resolve input path
	inputPath, err := resolveInputPath(positionalArgs)
	if err != nil {
		return err
	}

	// Resolve output directory and format
	outputDir := resolveOutputDir(flags.output, cfg)
	format := flags.job.format
	if format == "" {
		format = zpl2pdf.FormatPDF
	}

	// Discover files to convert
	files, err := discoverFiles(inputPath, outputDir, format)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no label files found in %s", inputPath)
	}

	conv, sched := buildConverter(cfg, flags)
	defer sched.Close()

	params := &conversionParams{
		labelSize:   cfg.Label.Size,
		density:     cfg.Label.Density,
		format:      format,
		tier:        tier,
		requesterID: flags.job.requester,
	}

	workers := resolveWorkers(flags.workers, len(files))
	results := convertBatch(ctx, conv, files, params, workers, deps)

	failedCount := printResults(results, flags.common.quiet, flags.common.verbose, deps)
	if flags.common.verbose {
		printSchedulerStats(sched, deps)
	}
	if failedCount > 0 {
		return fmt.Errorf("%d conversion(s) failed", failedCount)
	}
	return nil
}

// conversionParams groups submission parameters shared across the batch.
type conversionParams struct {
	labelSize   string
	density     int
	format      string
	tier        zpl2pdf.Tier
	requesterID string
}

// mergeFlags merges CLI flags into config. CLI values override config values.
func mergeFlags(flags *convertFlags, cfg *config.Config) error {
	if flags.renderer.url != "" {
		cfg.Renderer.URL = flags.renderer.url
	}
	if flags.renderer.timeout != "" {
		d, err := time.ParseDuration(flags.renderer.timeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Renderer.Timeout = d
	}
	if flags.renderer.batchSize > 0 {
		cfg.Renderer.MaxBatchSize = flags.renderer.batchSize
	}
	if flags.label.size != "" {
		cfg.Label.Size = flags.label.size
	}
	if flags.label.density > 0 {
		cfg.Label.Density = flags.label.density
	}
	return cfg.Validate()
}

// buildConverter wires the renderer, scheduler, and converter from config.
// The caller owns the returned scheduler and must Close it.
func buildConverter(cfg *config.Config, flags *convertFlags) (*zpl2pdf.Converter, *zpl2pdf.Scheduler) {
	timeout := cfg.Renderer.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rendererURL := cfg.Renderer.URL
	if rendererURL == "" {
		rendererURL = zpl2pdf.DefaultRendererURL
	}
	renderer := zpl2pdf.NewHTTPRenderer(rendererURL, timeout)

	logger := log.New(io.Discard)
	if flags.common.verbose {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.DebugLevel})
	}

	schedCfg := zpl2pdf.DefaultSchedulerConfig()
	schedCfg.RenderTimeout = timeout
	if cfg.Scheduler.HighSlots > 0 {
		schedCfg.Capacity[zpl2pdf.TierHigh] = cfg.Scheduler.HighSlots
	}
	if cfg.Scheduler.NormalSlots > 0 {
		schedCfg.Capacity[zpl2pdf.TierNormal] = cfg.Scheduler.NormalSlots
	}
	if cfg.Scheduler.LowSlots > 0 {
		schedCfg.Capacity[zpl2pdf.TierLow] = cfg.Scheduler.LowSlots
	}
	if cfg.Scheduler.MinDispatchInterval > 0 {
		schedCfg.MinDispatchInterval = cfg.Scheduler.MinDispatchInterval
	}
	if cfg.Scheduler.MaxRetries > 0 {
		schedCfg.MaxRetries = cfg.Scheduler.MaxRetries
	}
	if cfg.Scheduler.RetryBaseDelay > 0 {
		schedCfg.RetryBaseDelay = cfg.Scheduler.RetryBaseDelay
	}
	if cfg.Scheduler.RetryMaxDelay > 0 {
		schedCfg.RetryMaxDelay = cfg.Scheduler.RetryMaxDelay
	}
	sched := zpl2pdf.NewScheduler(renderer, schedCfg, zpl2pdf.SchedulerLogger(logger))

	opts := []zpl2pdf.Option{
		zpl2pdf.WithRenderer(renderer),
		zpl2pdf.WithScheduler(sched),
		zpl2pdf.WithTimeout(timeout),
		zpl2pdf.WithLogger(logger),
	}
	if cfg.Renderer.MaxBatchSize > 0 {
		opts = append(opts, zpl2pdf.WithMaxBatchSize(cfg.Renderer.MaxBatchSize))
	}

	return zpl2pdf.NewConverter(opts...), sched
}

// parseTier maps a tier flag value to a priority tier. Empty means low.
func parseTier(s string) (zpl2pdf.Tier, error) {
	switch strings.ToLower(s) {
	case "", "low":
		return zpl2pdf.TierLow, nil
	case "normal":
		return zpl2pdf.TierNormal, nil
	case "high":
		return zpl2pdf.TierHigh, nil
	default:
		return 0, fmt.Errorf("%w: %q (must be high, normal, or low)", ErrUnknownTier, s)
	}
}

// resolveInputPath determines the input path from args.
func resolveInputPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return "", ErrNoInput
}

// resolveOutputDir determines the output directory from flag or config.
func resolveOutputDir(flagOutput string, cfg *config.Config) string {
	if flagOutput != "" {
		return flagOutput
	}
	return cfg.Output.DefaultDir
}

// resolveWorkers picks the batch concurrency: explicit flag, else one worker
// per CPU, never more than the number of files.
func resolveWorkers(flagWorkers, fileCount int) int {
	n := flagWorkers
	if n == 0 {
		n = runtime.NumCPU()
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	if n > fileCount {
		n = fileCount
	}
	return n
}

// validateWorkers checks that the worker count is within valid bounds.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > maxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, maxWorkers)
	}
	return nil
}

// discoverFiles finds all label files to convert.
func discoverFiles(inputPath, outputDir, format string) ([]FileToConvert, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateLabelExtension(inputPath); err != nil {
			return nil, err
		}
		outPath := resolveOutputPath(inputPath, outputDir, "", format)
		return []FileToConvert{{InputPath: inputPath, OutputPath: outPath}}, nil
	}

	var files []FileToConvert
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".zpl" && ext != ".txt" {
			return nil
		}
		outPath := resolveOutputPath(path, outputDir, inputPath, format)
		files = append(files, FileToConvert{InputPath: path, OutputPath: outPath})
		return nil
	})

	return files, err
}

// resolveOutputPath determines the output path for a label file.
func resolveOutputPath(inputPath, outputDir, baseInputDir, format string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)
	outExt := "." + format

	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), base+outExt)
	}

	if strings.HasSuffix(outputDir, ".pdf") || strings.HasSuffix(outputDir, ".png") {
		return outputDir
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			relDir := filepath.Dir(relPath)
			return filepath.Join(outputDir, relDir, base+outExt)
		}
	}

	return filepath.Join(outputDir, base+outExt)
}

// validateLabelExtension checks that the file has a .zpl or .txt extension.
func validateLabelExtension(path string) error {
	ext := filepath.Ext(path)
	if ext != ".zpl" && ext != ".txt" {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, ext)
	}
	return nil
}

// convertBatch processes files concurrently. The converter is safe for
// concurrent use: the shared scheduler serializes renderer access.
func convertBatch(ctx context.Context, conv Converter, files []FileToConvert, params *conversionParams, workers int, deps *Dependencies) []ConversionResult {
	if len(files) == 0 {
		return nil
	}

	results := make([]ConversionResult, len(files))
	var wg sync.WaitGroup
	jobs := make(chan int, len(files))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ConversionResult{
						InputPath: files[idx].InputPath,
						Err:       ctx.Err(),
					}
					continue
				}
				results[idx] = convertFile(ctx, conv, files[idx], params, deps)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// convertFile processes a single file and returns the result. Timing goes
// through deps.Now so tests can inject a clock.
func convertFile(ctx context.Context, conv Converter, f FileToConvert, params *conversionParams, deps *Dependencies) ConversionResult {
	start := deps.Now()
	result := ConversionResult{
		InputPath:  f.InputPath,
		OutputPath: f.OutputPath,
	}

	content, err := os.ReadFile(f.InputPath) // #nosec G304 -- discovered path
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrReadInput, err)
		result.Duration = deps.Now().Sub(start)
		return result
	}

	res, err := conv.Convert(ctx, zpl2pdf.Input{
		ZPL:         string(content),
		LabelSize:   params.labelSize,
		Density:     params.density,
		Format:      params.format,
		Tier:        params.tier,
		RequesterID: params.requesterID,
	})
	if err != nil {
		result.Err = err
		result.Duration = deps.Now().Sub(start)
		return result
	}

	outDir := filepath.Dir(f.OutputPath)
	if err := os.MkdirAll(outDir, dirPermissions); err != nil {
		result.Err = fmt.Errorf("creating output directory: %w", err)
		result.Duration = deps.Now().Sub(start)
		return result
	}

	// #nosec G306 -- rendered documents are meant to be readable
	if err := os.WriteFile(f.OutputPath, res.Document, filePermissions); err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrWriteOutput, err)
		result.Duration = deps.Now().Sub(start)
		return result
	}

	result.Labels = res.PageCount
	result.Chunks = res.ChunkCount
	result.Duration = deps.Now().Sub(start)
	return result
}

// printResults outputs conversion results using the provided writers.
func printResults(results []ConversionResult, quiet, verbose bool, deps *Dependencies) int {
	var succeeded, failed int

	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(deps.Stderr, "FAILED %s: %v\n", r.InputPath, r.Err)
			continue
		}

		succeeded++
		if quiet {
			continue
		}

		if verbose {
			fmt.Fprintf(deps.Stdout, "%s -> %s (%d labels, %d requests, %v)\n",
				r.InputPath, r.OutputPath, r.Labels, r.Chunks, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(deps.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(deps.Stdout, "\n%d succeeded, %d failed\n", succeeded, failed)
	}

	return failed
}

// printSchedulerStats dumps a queue snapshot after the batch.
func printSchedulerStats(sched *zpl2pdf.Scheduler, deps *Dependencies) {
	stats := sched.Stats()
	fmt.Fprintf(deps.Stderr, "avg render latency: %v\n", stats.AverageRenderLatency.Round(time.Millisecond))
	for _, tier := range []zpl2pdf.Tier{zpl2pdf.TierHigh, zpl2pdf.TierNormal, zpl2pdf.TierLow} {
		fmt.Fprintf(deps.Stderr, "tier %s: %d/%d slots busy, %d queued\n",
			tier, stats.ActiveByTier[tier], stats.CapacityByTier[tier], stats.QueuedByTier[tier])
	}
}

// writeDefaultConfig writes an annotated default config file and exits.
func writeDefaultConfig(path string, deps *Dependencies) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrWriteOutput, path)
	}

	data, err := yamlutil.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	fmt.Fprintf(deps.Stdout, "Wrote %s\n", path)
	return nil
}

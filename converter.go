package zpl2pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-zpl2pdf/internal/zpl"
)

// Converter orchestrates the label conversion pipeline: extract and
// deduplicate blocks, plan chunks, submit them to the scheduler, and
// reassemble the rendered output into one document.
// Create with NewConverter, use Convert for conversion, and Close when done.
type Converter struct {
	cfg           converterConfig
	renderer      Renderer
	scheduler     *Scheduler
	ownsScheduler bool
	metrics       Recorder
	log           *log.Logger
}

// NewConverter creates a Converter with default configuration.
// Use options to customize behavior (e.g., WithTimeout, WithRenderer,
// WithScheduler). Without WithRenderer it talks to the public Labelary API;
// without WithScheduler it owns a private scheduler with default tiers.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		cfg: converterConfig{
			timeout:      defaultTimeout,
			maxBatchSize: DefaultMaxBatchSize,
		},
		metrics: NopRecorder{},
		log:     log.New(io.Discard),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Create renderer and scheduler if not injected (e.g., by tests)
	if c.renderer == nil {
		c.renderer = NewHTTPRenderer(DefaultRendererURL, c.cfg.timeout)
	}
	if c.scheduler == nil {
		schedCfg := DefaultSchedulerConfig()
		schedCfg.RenderTimeout = c.cfg.timeout
		c.scheduler = NewScheduler(c.renderer, schedCfg,
			SchedulerMetrics(c.metrics), SchedulerLogger(c.log))
		c.ownsScheduler = true
	}

	return c
}

// Scheduler exposes the converter's scheduler for queue position and stats
// queries.
func (c *Converter) Scheduler() *Scheduler {
	return c.scheduler
}

// Convert runs the full pipeline and returns the merged document.
// The context cancels the waiting side only: chunks already handed to the
// scheduler finish their in-flight renderer calls and free their slots.
func (c *Converter) Convert(ctx context.Context, input Input) (*Result, error) {
	input = input.withDefaults()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	doc := zpl.Extract(input.ZPL)
	if doc.UniqueCount() == 0 {
		return nil, ErrNoLabels
	}
	if input.Format == FormatPNG && doc.TotalLabels() > 1 {
		return nil, fmt.Errorf("%w: submission renders %d labels", ErrPNGMultiLabel, doc.TotalLabels())
	}

	jobID := input.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	ranges := planChunks(doc.UniqueCount(), c.cfg.maxBatchSize)
	c.log.Debug("planned conversion",
		"job", jobID, "labels", doc.TotalLabels(), "unique", doc.UniqueCount(), "chunks", len(ranges))

	chunks := make([][]byte, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		fut := c.scheduler.Submit(SubmitRequest{
			JobID:       jobID,
			RequesterID: input.RequesterID,
			Tier:        input.Tier,
			Payload:     strings.Join(doc.Unique[r.Start:r.End], "\n"),
			LabelCount:  r.size(),
			LabelSize:   input.LabelSize,
			Density:     input.Density,
			Format:      input.Format,
		})
		g.Go(func() error {
			data, err := fut.Wait(gctx)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	document := chunks[0]
	if input.Format == FormatPDF {
		merged, err := mergeChunks(chunks, doc.Sequence, c.cfg.maxBatchSize)
		if err != nil {
			return nil, err
		}
		document = merged
	}

	return &Result{
		Document:    document,
		Format:      input.Format,
		PageCount:   doc.TotalLabels(),
		UniqueCount: doc.UniqueCount(),
		ChunkCount:  len(ranges),
	}, nil
}

// Close releases the converter's scheduler. A scheduler shared via
// WithScheduler is left running for its other users.
func (c *Converter) Close() error {
	if c.ownsScheduler && c.scheduler != nil {
		c.scheduler.Close()
	}
	return nil
}

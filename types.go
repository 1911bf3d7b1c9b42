package zpl2pdf

import (
	"fmt"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
)

// Output format constants.
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// Supported print densities in dots per millimeter.
const (
	Density6dpmm  = 6
	Density8dpmm  = 8
	Density12dpmm = 12
	Density24dpmm = 24
)

// Defaults applied when Input leaves the field zero.
const (
	DefaultLabelSize = "4x6"
	DefaultDensity   = Density8dpmm
)

// Tier is a priority class with its own reserved concurrency slot pool.
type Tier int

// Priority tiers, lowest first so higher values mean higher priority.
const (
	TierLow Tier = iota
	TierNormal
	TierHigh
)

// tierDispatchOrder lists tiers highest-priority first; the dispatch cycle
// scans lanes in this order.
var tierDispatchOrder = []Tier{TierHigh, TierNormal, TierLow}

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierNormal:
		return "normal"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// valid reports whether t is a known tier.
func (t Tier) valid() bool {
	return t >= TierLow && t <= TierHigh
}

// labelSizeRe matches "<width>x<height>" in inches, e.g. "4x6" or "2.25x1.25".
var labelSizeRe = regexp.MustCompile(`^\d+(\.\d+)?x\d+(\.\d+)?$`)

// Input contains conversion parameters.
type Input struct {
	ZPL         string // raw label markup (required)
	LabelSize   string // "<width>x<height>" inches (default: "4x6")
	Density     int    // print density in dpmm: 6, 8, 12, 24 (default: 8)
	Format      string // "pdf" or "png" (default: "pdf")
	Tier        Tier   // priority class (default: TierLow)
	JobID       string // conversion job identifier (optional, generated if empty)
	RequesterID string // owner of the submission (optional)
}

// withDefaults returns a copy of in with zero fields replaced by defaults.
func (in Input) withDefaults() Input {
	if in.LabelSize == "" {
		in.LabelSize = DefaultLabelSize
	}
	if in.Density == 0 {
		in.Density = DefaultDensity
	}
	if in.Format == "" {
		in.Format = FormatPDF
	}
	return in
}

// Validate checks that input fields are present and well-formed.
// Called on the defaulted copy, so zero values never reach it.
func (in Input) Validate() error {
	if in.ZPL == "" {
		return ErrEmptyInput
	}
	if !labelSizeRe.MatchString(in.LabelSize) {
		return fmt.Errorf("%w: %q (want e.g. \"4x6\")", ErrInvalidLabelSize, in.LabelSize)
	}
	switch in.Density {
	case Density6dpmm, Density8dpmm, Density12dpmm, Density24dpmm:
	default:
		return fmt.Errorf("%w: %d (want 6, 8, 12, or 24 dpmm)", ErrInvalidDensity, in.Density)
	}
	switch in.Format {
	case FormatPDF, FormatPNG:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, in.Format)
	}
	if !in.Tier.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, int(in.Tier))
	}
	return nil
}

// Result holds the rendered document.
type Result struct {
	Document    []byte // merged PDF, or PNG for single-label PNG conversions
	Format      string
	PageCount   int // total labels including repeats
	UniqueCount int // distinct labels sent to the renderer
	ChunkCount  int // renderer requests issued for the submission
}

// Option configures a Converter.
type Option func(*Converter)

// converterConfig holds internal configuration for Converter.
type converterConfig struct {
	timeout      time.Duration
	maxBatchSize int
}

// defaultTimeout bounds a single renderer call.
const defaultTimeout = 30 * time.Second

// WithTimeout sets the per-renderer-call timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("zpl2pdf: WithTimeout duration must be positive")
	}
	return func(c *Converter) {
		c.cfg.timeout = d
	}
}

// WithMaxBatchSize overrides the renderer's labels-per-request cap.
// Panics if n < 1.
func WithMaxBatchSize(n int) Option {
	if n < 1 {
		panic("zpl2pdf: WithMaxBatchSize must be at least 1")
	}
	return func(c *Converter) {
		c.cfg.maxBatchSize = n
	}
}

// WithRenderer injects a renderer client, replacing the default HTTP client.
func WithRenderer(r Renderer) Option {
	return func(c *Converter) {
		c.renderer = r
	}
}

// WithScheduler shares an existing scheduler between converters. The caller
// keeps ownership: Converter.Close will not close a shared scheduler.
func WithScheduler(s *Scheduler) Option {
	return func(c *Converter) {
		c.scheduler = s
		c.ownsScheduler = false
	}
}

// WithMetrics injects a call metrics recorder. Defaults to a no-op recorder.
func WithMetrics(r Recorder) Option {
	return func(c *Converter) {
		c.metrics = r
	}
}

// WithLogger injects a logger. The default discards everything so the
// library stays silent unless the embedding program opts in.
func WithLogger(l *log.Logger) Option {
	return func(c *Converter) {
		c.log = l
	}
}

package zpl2pdf

import "errors"

// Sentinel errors for library operations.
var (
	// ErrNoLabels means the input contained no complete ^XA...^XZ block.
	ErrNoLabels = errors.New("no label blocks found in input")

	// ErrRateLimited means the renderer kept rejecting a request for rate
	// limiting after all retries were spent.
	ErrRateLimited = errors.New("renderer rate limit exceeded after retries")

	// ErrRenderFailed covers every non-retryable renderer failure: bad
	// request, server error, timeout, transport failure.
	ErrRenderFailed = errors.New("renderer request failed")

	// ErrReassembly means a rendered chunk was missing or unreadable when
	// merging the final document.
	ErrReassembly = errors.New("document reassembly failed")

	// ErrSchedulerClosed means Submit was called after Close.
	ErrSchedulerClosed = errors.New("scheduler is closed")

	// ErrPNGMultiLabel means PNG output was requested for a submission that
	// renders more than one label. The renderer returns a single image per
	// request, so PNG is limited to one-label submissions.
	ErrPNGMultiLabel = errors.New("png output requires a single-label submission")

	// Input and option validation errors.
	ErrEmptyInput       = errors.New("zpl content cannot be empty")
	ErrInvalidLabelSize = errors.New("invalid label size")
	ErrInvalidDensity   = errors.New("invalid print density")
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidTier      = errors.New("invalid priority tier")
	ErrInvalidBatchSize = errors.New("invalid max batch size")
	ErrInvalidCapacity  = errors.New("tier capacity must be positive")
)

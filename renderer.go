package zpl2pdf

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RenderStatus classifies a renderer response. The three cases are closed:
// the scheduler's retry logic switches over all of them.
type RenderStatus int

const (
	// RenderOK carries the rasterized document bytes.
	RenderOK RenderStatus = iota
	// RenderRateLimited means the renderer rejected the call for rate
	// limiting; the request itself was well-formed and may be retried.
	RenderRateLimited
	// RenderFailed covers everything else: bad request, server error,
	// timeout, transport failure. Not retried.
	RenderFailed
)

func (s RenderStatus) String() string {
	switch s {
	case RenderOK:
		return "ok"
	case RenderRateLimited:
		return "rate_limited"
	case RenderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RenderRequest is one batch-render call: a payload of at most the
// renderer's per-request label cap, plus the label geometry.
type RenderRequest struct {
	Payload   string
	LabelSize string // "<width>x<height>" inches
	Density   int    // dpmm
	Format    string // "pdf" or "png"
}

// RenderOutcome is the renderer's answer. Data is set only for RenderOK;
// Message describes RenderFailed causes.
type RenderOutcome struct {
	Status  RenderStatus
	Data    []byte
	Message string
}

// Renderer abstracts the external rendering API to allow test doubles.
// Implementations must bound the call with the context's deadline.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) RenderOutcome
}

// DefaultRendererURL is the public Labelary endpoint.
const DefaultRendererURL = "http://api.labelary.com"

// maxErrorBodyLen caps how much of an error response body is kept.
const maxErrorBodyLen = 200

// HTTPRenderer renders label batches through a Labelary-compatible HTTP API:
// POST /v1/printers/{density}dpmm/labels/{size}/ with the raw markup as body.
type HTTPRenderer struct {
	client *resty.Client
}

// Compile-time interface implementation check.
var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer creates a renderer client for the given base URL.
// The timeout bounds each call in addition to any context deadline.
func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")
	return &HTTPRenderer{client: client}
}

// Render issues one batch-render call. Never returns an error: every failure
// mode is folded into the outcome so callers match exhaustively.
func (r *HTTPRenderer) Render(ctx context.Context, req RenderRequest) RenderOutcome {
	accept := "application/pdf"
	path := fmt.Sprintf("/v1/printers/%ddpmm/labels/%s/", req.Density, req.LabelSize)
	if req.Format == FormatPNG {
		// PNG responses carry a single image, addressed by label index.
		accept = "image/png"
		path += "0/"
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetBody(req.Payload).
		Post(path)
	if err != nil {
		return RenderOutcome{Status: RenderFailed, Message: err.Error()}
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
		return RenderOutcome{Status: RenderOK, Data: resp.Body()}
	case resp.StatusCode() == http.StatusTooManyRequests:
		return RenderOutcome{Status: RenderRateLimited}
	default:
		return RenderOutcome{
			Status:  RenderFailed,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode(), truncate(string(resp.Body()), maxErrorBodyLen)),
		}
	}
}

// truncate shortens s to at most n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

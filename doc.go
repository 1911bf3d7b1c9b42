// Package zpl2pdf converts ZPL label markup into a single merged PDF by
// batching labels to a Labelary-compatible rendering API.
//
// # Quick Start
//
// Create a converter, convert markup, and close when done:
//
//	conv := zpl2pdf.NewConverter()
//	defer conv.Close()
//
//	result, err := conv.Convert(ctx, zpl2pdf.Input{
//	    ZPL: "^XA^FO50,50^FDHello^FS^XZ",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("labels.pdf", result.Document, 0644)
//
// # Conversion Pipeline
//
// A submission flows through these stages:
//
//  1. Block extraction: every ^XA...^XZ block is normalized and its ^PQ
//     print quantity recorded.
//  2. Deduplication: structurally identical blocks collapse into one
//     unique entry; the original page order is kept as a sequence of
//     unique-block ids.
//  3. Chunk planning: unique blocks are partitioned into batches that fit
//     the renderer's labels-per-request cap (50 by default).
//  4. Scheduling: each chunk is submitted to a priority scheduler that
//     reserves concurrency per tier, spaces out renderer calls globally,
//     and retries rate-limited calls with exponential backoff.
//  5. Reassembly: the rendered chunks are merged back into one PDF whose
//     page order and duplicate counts match the original markup.
//
// Deduplication is what makes large batches cheap: a submission of 10,000
// identical shipping labels costs one renderer call, not two hundred.
//
// # Priority Tiers
//
// Renderer capacity is divided into tiers (TierHigh, TierNormal, TierLow),
// each with its own reserved slots. A busy high tier never starves the low
// tier of its own slots, and vice versa. Servers that convert on behalf of
// many customers share one Scheduler across converters:
//
//	sched := zpl2pdf.NewScheduler(renderer, zpl2pdf.DefaultSchedulerConfig())
//	defer sched.Close()
//
//	conv := zpl2pdf.NewConverter(zpl2pdf.WithScheduler(sched))
//
// Scheduler.QueuePosition and Scheduler.Stats expose queue state for
// status endpoints.
//
// # Configuration
//
// Use functional options to customize the converter:
//
//	conv := zpl2pdf.NewConverter(
//	    zpl2pdf.WithTimeout(time.Minute),
//	    zpl2pdf.WithMaxBatchSize(25),
//	    zpl2pdf.WithMetrics(zpl2pdf.NewPrometheusRecorder(prometheus.DefaultRegisterer)),
//	)
//
// Per-conversion options are passed via Input:
//
//	result, err := conv.Convert(ctx, zpl2pdf.Input{
//	    ZPL:       content,
//	    LabelSize: "4x6",
//	    Density:   zpl2pdf.Density12dpmm,
//	    Tier:      zpl2pdf.TierHigh,
//	})
//
// # Error Handling
//
// Errors are wrapped sentinel values; match with errors.Is:
//
//	_, err := conv.Convert(ctx, input)
//	switch {
//	case errors.Is(err, zpl2pdf.ErrNoLabels):      // nothing to render
//	case errors.Is(err, zpl2pdf.ErrRateLimited):   // retries exhausted
//	case errors.Is(err, zpl2pdf.ErrRenderFailed):  // renderer rejected the call
//	case errors.Is(err, zpl2pdf.ErrReassembly):    // chunk output unusable
//	}
//
// Rate-limited renderer calls are retried inside the scheduler and surface
// only after retries are exhausted. No partial documents are ever returned:
// if any chunk fails, the whole conversion fails.
package zpl2pdf

package zpl2pdf

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Status is the lifecycle state of a queue item.
// Terminal states are StatusCompleted and StatusFailed.
type Status int

const (
	StatusQueued Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitRequest describes one chunk-render submission.
type SubmitRequest struct {
	JobID       string
	RequesterID string
	Tier        Tier
	Payload     string // chunk markup, one or more normalized blocks
	LabelCount  int    // labels the payload renders, for metrics and sizing
	LabelSize   string
	Density     int
	Format      string
}

// QueueItem is the scheduler's bookkeeping record for one submission.
// All fields are owned by the scheduler and mutated only under its lock.
type QueueItem struct {
	ID            string
	JobID         string
	RequesterID   string
	Tier          Tier
	Request       RenderRequest
	LabelCount    int
	Attempts      int
	Status        Status
	CreatedAt     time.Time
	LastAttemptAt time.Time

	backoff retry.Backoff
	future  *Future
}

// Future resolves exactly once with the rendered bytes or an error.
type Future struct {
	ch chan futureOutcome
}

type futureOutcome struct {
	data []byte
	err  error
}

func newFuture() *Future {
	return &Future{ch: make(chan futureOutcome, 1)}
}

// Wait blocks until the future resolves or ctx is done. A future may be
// waited on by at most one caller. Abandoning a Wait (ctx cancellation)
// does not cancel the in-flight renderer call; its slot is freed when the
// call eventually resolves or times out.
func (f *Future) Wait(ctx context.Context) ([]byte, error) {
	select {
	case o := <-f.ch:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve fulfills the future with rendered bytes. Must be called at most
// once, on the terminal transition.
func (f *Future) resolve(data []byte) {
	f.ch <- futureOutcome{data: data}
}

// reject fulfills the future with an error. Must be called at most once.
func (f *Future) reject(err error) {
	f.ch <- futureOutcome{err: err}
}

// SlotPool tracks one tier's reserved concurrency.
// Mutated only under the scheduler lock; 0 <= active <= capacity always.
type SlotPool struct {
	capacity int
	active   int
}

func (p *SlotPool) hasCapacity() bool { return p.active < p.capacity }

// acquire claims a slot. Callers check hasCapacity first under the same lock.
func (p *SlotPool) acquire() {
	if p.active < p.capacity {
		p.active++
	}
}

func (p *SlotPool) release() {
	if p.active > 0 {
		p.active--
	}
}

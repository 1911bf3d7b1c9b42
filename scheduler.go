package zpl2pdf

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// SchedulerConfig tunes the priority request scheduler.
type SchedulerConfig struct {
	// Capacity reserves concurrency slots per tier. Tiers absent from the
	// map get DefaultTierCapacity.
	Capacity map[Tier]int

	// MinDispatchInterval is the minimum elapsed time between two renderer
	// calls being issued, across all tiers. It throttles the rate of
	// issuing calls, not their completion.
	MinDispatchInterval time.Duration

	// MaxRetries bounds attempts for rate-limited items. An item whose
	// attempt count reaches this value is failed instead of requeued.
	MaxRetries int

	// Backoff for rate-limit retries: base * 2^(attempt-1) plus up to
	// RetryJitter of random jitter, capped at RetryMaxDelay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    time.Duration

	// RenderTimeout bounds each renderer call. A timed-out call counts as
	// a generic failure and is not retried.
	RenderTimeout time.Duration
}

// DefaultTierCapacity applies to tiers missing from SchedulerConfig.Capacity.
const DefaultTierCapacity = 1

// DefaultSchedulerConfig returns the scheduler defaults: paid tiers get
// more slots, one renderer call per 200ms globally, three attempts per
// rate-limited item.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Capacity: map[Tier]int{
			TierHigh:   3,
			TierNormal: 2,
			TierLow:    1,
		},
		MinDispatchInterval: 200 * time.Millisecond,
		MaxRetries:          3,
		RetryBaseDelay:      500 * time.Millisecond,
		RetryMaxDelay:       10 * time.Second,
		RetryJitter:         250 * time.Millisecond,
		RenderTimeout:       defaultTimeout,
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// SchedulerMetrics injects a call metrics recorder.
func SchedulerMetrics(r Recorder) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = r
	}
}

// SchedulerLogger injects a logger for dispatch/retry events.
func SchedulerLogger(l *log.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = l
	}
}

// Scheduler accepts chunk-render submissions tagged with a priority tier,
// guarantees each tier its reserved concurrency, enforces a single global
// minimum interval between dispatches, and retries rate-limited calls with
// exponential backoff.
//
// Within a tier, first-attempt dispatch order is FIFO. A rate-limited item
// is reinserted at the front of its lane so the wait it already served is
// not repeated; a persistently throttled item can therefore cut ahead of
// newer arrivals in the same lane. No ordering holds across tiers, and
// completion order is unrelated to submission order.
//
// Lanes are unbounded: backpressure comes only from slot capacity, so a
// caller that enqueues faster than the renderer drains will grow memory.
type Scheduler struct {
	cfg      SchedulerConfig
	renderer Renderer
	metrics  Recorder
	log      *log.Logger

	mu           sync.Mutex
	lanes        map[Tier][]*QueueItem
	slots        map[Tier]*SlotPool
	byJob        map[string][]*QueueItem
	lastDispatch time.Time
	dispatching  bool
	closed       bool
	avgLatency   time.Duration
}

// NewScheduler creates a scheduler dispatching to the given renderer.
// Zero config fields are replaced with DefaultSchedulerConfig values.
func NewScheduler(renderer Renderer, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Capacity == nil {
		cfg.Capacity = def.Capacity
	}
	if cfg.MinDispatchInterval <= 0 {
		cfg.MinDispatchInterval = def.MinDispatchInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = def.RetryMaxDelay
	}
	if cfg.RetryJitter <= 0 {
		cfg.RetryJitter = def.RetryJitter
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = def.RenderTimeout
	}

	s := &Scheduler{
		cfg:      cfg,
		renderer: renderer,
		metrics:  NopRecorder{},
		log:      log.New(io.Discard),
		lanes:    make(map[Tier][]*QueueItem),
		slots:    make(map[Tier]*SlotPool),
		byJob:    make(map[string][]*QueueItem),
	}
	for _, t := range tierDispatchOrder {
		capacity, ok := cfg.Capacity[t]
		if !ok || capacity < 1 {
			capacity = DefaultTierCapacity
		}
		s.slots[t] = &SlotPool{capacity: capacity}
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit enqueues one chunk-render request and returns immediately.
// The future resolves with rendered bytes, or rejects with ErrRateLimited
// after retries are exhausted, ErrRenderFailed on a non-retryable failure,
// or ErrSchedulerClosed.
func (s *Scheduler) Submit(req SubmitRequest) *Future {
	fut := newFuture()

	if !req.Tier.valid() {
		fut.reject(fmt.Errorf("%w: %d", ErrInvalidTier, int(req.Tier)))
		return fut
	}

	item := &QueueItem{
		ID:          uuid.NewString(),
		JobID:       req.JobID,
		RequesterID: req.RequesterID,
		Tier:        req.Tier,
		Request: RenderRequest{
			Payload:   req.Payload,
			LabelSize: req.LabelSize,
			Density:   req.Density,
			Format:    req.Format,
		},
		LabelCount: req.LabelCount,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
		backoff:    s.newBackoff(),
		future:     fut,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fut.reject(ErrSchedulerClosed)
		return fut
	}
	s.lanes[item.Tier] = append(s.lanes[item.Tier], item)
	if item.JobID != "" {
		s.byJob[item.JobID] = append(s.byJob[item.JobID], item)
	}
	s.mu.Unlock()

	s.log.Debug("submitted render request",
		"item", item.ID, "job", item.JobID, "tier", item.Tier.String(), "labels", item.LabelCount)
	s.triggerDispatch()
	return fut
}

// Close rejects all queued items and stops accepting submissions.
// In-flight renderer calls are not interrupted; their futures still resolve
// and their slots are released on completion.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var drained []*QueueItem
	for t, lane := range s.lanes {
		drained = append(drained, lane...)
		s.lanes[t] = nil
	}
	for _, item := range drained {
		item.Status = StatusFailed
		s.forgetLocked(item)
	}
	s.mu.Unlock()

	for _, item := range drained {
		item.future.reject(ErrSchedulerClosed)
	}
}

// triggerDispatch starts a dispatch cycle unless one is already running.
// Only one cycle runs at a time; concurrent submissions rely on the running
// cycle to pick their items up.
func (s *Scheduler) triggerDispatch() {
	s.mu.Lock()
	if s.dispatching || s.closed {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	s.mu.Unlock()

	go s.dispatchCycle()
}

// dispatchCycle drains dispatchable work: while any tier has both waiting
// items and spare slots, pick by strict tier priority, honor the global
// minimum dispatch interval, and launch the renderer call without waiting
// for it to finish.
func (s *Scheduler) dispatchCycle() {
	for {
		s.mu.Lock()
		if s.closed {
			s.dispatching = false
			s.mu.Unlock()
			return
		}

		tier, ok := s.nextLane()
		if !ok {
			s.dispatching = false
			s.mu.Unlock()
			return
		}

		// Rate limit the issuing of calls, then re-evaluate: a higher
		// priority item may have arrived while we slept.
		if wait := s.cfg.MinDispatchInterval - time.Since(s.lastDispatch); wait > 0 {
			s.mu.Unlock()
			time.Sleep(wait)
			continue
		}

		lane := s.lanes[tier]
		item := lane[0]
		s.lanes[tier] = lane[1:]
		s.slots[tier].acquire()
		item.Status = StatusProcessing
		item.Attempts++
		item.LastAttemptAt = time.Now()
		s.lastDispatch = item.LastAttemptAt
		s.mu.Unlock()

		s.log.Debug("dispatching render request",
			"item", item.ID, "tier", tier.String(), "attempt", item.Attempts)
		go s.execute(item)
	}
}

// nextLane picks the highest-priority tier that has waiting work and a
// spare slot. A full higher-priority lane does not block a lower one:
// tiers are independent resource pools, not a single ordered queue.
func (s *Scheduler) nextLane() (Tier, bool) {
	for _, t := range tierDispatchOrder {
		if len(s.lanes[t]) > 0 && s.slots[t].hasCapacity() {
			return t, true
		}
	}
	return 0, false
}

// execute runs one renderer call and applies the item's terminal or retry
// transition.
func (s *Scheduler) execute(item *QueueItem) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RenderTimeout)
	defer cancel()

	start := time.Now()
	out := s.renderer.Render(ctx, item.Request)
	latency := time.Since(start)

	switch out.Status {
	case RenderOK:
		s.mu.Lock()
		s.slots[item.Tier].release()
		item.Status = StatusCompleted
		s.forgetLocked(item)
		s.observeLatencyLocked(latency)
		s.mu.Unlock()

		s.track(func() { s.metrics.TrackSuccess(latency, item.LabelCount) })
		item.future.resolve(out.Data)
		s.log.Debug("render completed", "item", item.ID, "latency", latency)
		s.triggerDispatch()

	case RenderRateLimited:
		s.mu.Lock()
		s.slots[item.Tier].release()
		exhausted := item.Attempts >= s.cfg.MaxRetries
		if exhausted {
			item.Status = StatusFailed
			s.forgetLocked(item)
		} else {
			// No call is in flight during the backoff window; the item
			// reads as queued until requeueFront reinserts it.
			item.Status = StatusQueued
		}
		s.mu.Unlock()

		s.track(func() { s.metrics.TrackRateLimit(latency) })
		if exhausted {
			item.future.reject(fmt.Errorf("%w: gave up after %d attempts", ErrRateLimited, item.Attempts))
			s.log.Debug("render rate limited, retries exhausted", "item", item.ID, "attempts", item.Attempts)
			s.triggerDispatch()
			return
		}

		delay, _ := item.backoff.Next()
		s.log.Debug("render rate limited, backing off",
			"item", item.ID, "attempt", item.Attempts, "delay", delay)
		time.AfterFunc(delay, func() { s.requeueFront(item) })
		s.triggerDispatch()

	case RenderFailed:
		s.mu.Lock()
		s.slots[item.Tier].release()
		item.Status = StatusFailed
		s.forgetLocked(item)
		s.mu.Unlock()

		s.track(func() { s.metrics.TrackError(latency, out.Message) })
		item.future.reject(fmt.Errorf("%w: %s", ErrRenderFailed, out.Message))
		s.log.Debug("render failed", "item", item.ID, "reason", out.Message)
		s.triggerDispatch()
	}
}

// requeueFront reinserts a rate-limited item at the head of its lane after
// its backoff delay, so the wait it already served is not repeated.
func (s *Scheduler) requeueFront(item *QueueItem) {
	s.mu.Lock()
	if s.closed {
		item.Status = StatusFailed
		s.forgetLocked(item)
		s.mu.Unlock()
		item.future.reject(ErrSchedulerClosed)
		return
	}
	item.Status = StatusQueued
	s.lanes[item.Tier] = append([]*QueueItem{item}, s.lanes[item.Tier]...)
	s.mu.Unlock()

	s.triggerDispatch()
}

// forgetLocked removes a terminal item from job tracking. Caller holds mu.
func (s *Scheduler) forgetLocked(item *QueueItem) {
	if item.JobID == "" {
		return
	}
	tracked := s.byJob[item.JobID]
	for i, it := range tracked {
		if it == item {
			tracked = append(tracked[:i], tracked[i+1:]...)
			break
		}
	}
	if len(tracked) == 0 {
		delete(s.byJob, item.JobID)
	} else {
		s.byJob[item.JobID] = tracked
	}
}

// observeLatencyLocked folds a sample into the latency moving average.
// Caller holds mu.
func (s *Scheduler) observeLatencyLocked(latency time.Duration) {
	if s.avgLatency == 0 {
		s.avgLatency = latency
		return
	}
	s.avgLatency = time.Duration((int64(s.avgLatency)*9 + int64(latency)) / 10)
}

// track runs a metrics callback, swallowing panics: recording must never
// fail the scheduling path.
func (s *Scheduler) track(f func()) {
	defer func() {
		_ = recover()
	}()
	f()
}

// newBackoff builds the per-item retry delay source: exponential from
// RetryBaseDelay with RetryJitter, capped at RetryMaxDelay.
func (s *Scheduler) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.RetryBaseDelay)
	b = retry.WithJitter(s.cfg.RetryJitter, b)
	return retry.WithCappedDuration(s.cfg.RetryMaxDelay, b)
}

// QueuePosition reports a job's place in the queue.
type QueuePosition struct {
	// Status is the job's aggregate state: processing if any of its items
	// is in flight, else queued.
	Status Status

	// Position is the number of items ahead of the job's best-placed
	// queued item in its lane, or -1 when nothing is queued.
	Position int

	// EstimatedWait is a coarse estimate derived from the position, the
	// dispatch interval, and the average render latency.
	EstimatedWait time.Duration

	// LaneLengths is the queued count per tier at the time of the call.
	LaneLengths map[Tier]int
}

// QueuePosition reports where a job currently stands. The second return is
// false when the scheduler no longer tracks the job: every item resolved,
// or the job was never submitted.
func (s *Scheduler) QueuePosition(jobID string) (QueuePosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked := s.byJob[jobID]
	if len(tracked) == 0 {
		return QueuePosition{}, false
	}

	pos := QueuePosition{
		Status:      StatusQueued,
		Position:    -1,
		LaneLengths: make(map[Tier]int, len(tierDispatchOrder)),
	}
	for _, t := range tierDispatchOrder {
		pos.LaneLengths[t] = len(s.lanes[t])
	}

	for _, item := range tracked {
		if item.Status == StatusProcessing {
			pos.Status = StatusProcessing
		}
	}
	for _, item := range tracked {
		if item.Status != StatusQueued {
			continue
		}
		for i, queued := range s.lanes[item.Tier] {
			if queued == item {
				if pos.Position < 0 || i < pos.Position {
					pos.Position = i
				}
				break
			}
		}
	}

	if pos.Position >= 0 {
		pos.EstimatedWait = time.Duration(pos.Position+1) * s.dispatchEstimateLocked()
	}
	return pos, true
}

// dispatchEstimateLocked approximates the time between two dispatches for
// one lane position. Caller holds mu.
func (s *Scheduler) dispatchEstimateLocked() time.Duration {
	total := 0
	for _, pool := range s.slots {
		total += pool.capacity
	}
	perSlot := s.avgLatency
	if total > 0 {
		perSlot = s.avgLatency / time.Duration(total)
	}
	return max(s.cfg.MinDispatchInterval, perSlot)
}

// SchedulerStats is a point-in-time snapshot of lane and slot usage.
type SchedulerStats struct {
	QueuedByTier         map[Tier]int
	ActiveByTier         map[Tier]int
	CapacityByTier       map[Tier]int
	AverageRenderLatency time.Duration
}

// Stats snapshots the scheduler state.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStats{
		QueuedByTier:         make(map[Tier]int, len(tierDispatchOrder)),
		ActiveByTier:         make(map[Tier]int, len(tierDispatchOrder)),
		CapacityByTier:       make(map[Tier]int, len(tierDispatchOrder)),
		AverageRenderLatency: s.avgLatency,
	}
	for _, t := range tierDispatchOrder {
		st.QueuedByTier[t] = len(s.lanes[t])
		st.ActiveByTier[t] = s.slots[t].active
		st.CapacityByTier[t] = s.slots[t].capacity
	}
	return st
}

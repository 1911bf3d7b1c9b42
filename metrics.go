package zpl2pdf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder observes renderer call outcomes. Implementations are
// fire-and-forget: they must never block, and panics are swallowed by the
// scheduler so a broken metrics backend cannot fail a conversion.
type Recorder interface {
	TrackSuccess(latency time.Duration, labelCount int)
	TrackRateLimit(latency time.Duration)
	TrackError(latency time.Duration, message string)
}

// NopRecorder discards every observation. The zero value is ready to use;
// it is the default so the scheduler is testable without a metrics backend.
type NopRecorder struct{}

// Compile-time interface implementation checks.
var (
	_ Recorder = NopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func (NopRecorder) TrackSuccess(time.Duration, int)  {}
func (NopRecorder) TrackRateLimit(time.Duration)     {}
func (NopRecorder) TrackError(time.Duration, string) {}

// PrometheusRecorder exports renderer call metrics: a request counter by
// outcome, a latency histogram, and a labels-rendered counter.
// Error messages are logged nowhere here; they stay out of label values to
// keep cardinality bounded.
type PrometheusRecorder struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
	labels   prometheus.Counter
}

// NewPrometheusRecorder registers the collectors with reg.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zpl2pdf",
			Subsystem: "renderer",
			Name:      "requests_total",
			Help:      "Renderer calls by outcome.",
		}, []string{"outcome"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zpl2pdf",
			Subsystem: "renderer",
			Name:      "request_duration_seconds",
			Help:      "Renderer call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		labels: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "zpl2pdf",
			Subsystem: "renderer",
			Name:      "labels_rendered_total",
			Help:      "Labels successfully rendered.",
		}),
	}
}

func (r *PrometheusRecorder) TrackSuccess(latency time.Duration, labelCount int) {
	r.requests.WithLabelValues("success").Inc()
	r.latency.Observe(latency.Seconds())
	r.labels.Add(float64(labelCount))
}

func (r *PrometheusRecorder) TrackRateLimit(latency time.Duration) {
	r.requests.WithLabelValues("rate_limited").Inc()
	r.latency.Observe(latency.Seconds())
}

func (r *PrometheusRecorder) TrackError(latency time.Duration, _ string) {
	r.requests.WithLabelValues("error").Inc()
	r.latency.Observe(latency.Seconds())
}

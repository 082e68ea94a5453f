// Package metrics exposes Prometheus counters for verification outcomes and
// delivery attempts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is safe to use as a nil pointer, which records nothing.
type Recorder struct {
	requests   *prometheus.CounterVec
	confirms   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	swept      prometheus.Counter
}

// New registers the collectors on reg (prometheus.DefaultRegisterer in production).
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_code_requests_total",
			Help: "Code requests by result.",
		}, []string{"result"}),
		confirms: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_confirmations_total",
			Help: "Confirmation attempts by outcome.",
		}, []string{"outcome"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_delivery_attempts_total",
			Help: "Delivery attempts by channel and result.",
		}, []string{"channel", "result"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verification_delivery_duration_seconds",
			Help:    "Duration of outbound delivery calls.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"channel"}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Name: "verification_records_swept_total",
			Help: "Expired records removed by the sweeper.",
		}),
	}
}

func (r *Recorder) CodeRequested(result string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(result).Inc()
}

func (r *Recorder) Confirmed(outcome string) {
	if r == nil {
		return
	}
	r.confirms.WithLabelValues(outcome).Inc()
}

// Delivery records one channel attempt. result is "ok", "error" or "unconfigured".
func (r *Recorder) Delivery(channel, result string, took time.Duration) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(channel, result).Inc()
	if took > 0 {
		r.latency.WithLabelValues(channel).Observe(took.Seconds())
	}
}

func (r *Recorder) Swept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.swept.Add(float64(n))
}

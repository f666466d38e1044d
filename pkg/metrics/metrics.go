// Package metrics exposes prometheus instrumentation for the admission
// server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the admission server metrics.
type Recorder struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewRecorder registers the admission metrics with the given registerer.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	recorder := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageguard_admission_requests_total",
			Help: "Number of admission requests processed, partitioned by workload kind and verdict.",
		}, []string{"kind", "allowed"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageguard_admission_review_duration_seconds",
			Help:    "Admission review latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registerer.MustRegister(recorder.requests, recorder.duration)
	return recorder
}

// RecordRequest counts one processed admission request.
func (r *Recorder) RecordRequest(kind string, allowed bool, startTime time.Time) {
	r.requests.WithLabelValues(kind, strconv.FormatBool(allowed)).Inc()
	r.duration.Observe(time.Since(startTime).Seconds())
}

// Package metrics contains the registry server's Prometheus metric
// definitions: request counters/histograms for the HTTP API surface and
// gauges for catalog and upload activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes the counters/histograms/gauges the registry increments
// as it serves requests, keeping callers from reaching into the
// prometheus package directly at every call site.
type Recorder struct {
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	CardInserts     *prometheus.CounterVec
	UploadBytes     *prometheus.CounterVec
	ActiveUploads   prometheus.Gauge
}

// New registers the registry's metrics against reg and returns a Recorder.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "opsml_http_request_duration_seconds",
			Help: "HTTP request latency by route and status.",
		}, []string{"route", "method", "status"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsml_http_requests_total",
			Help: "Total HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		CardInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsml_card_inserts_total",
			Help: "Total cards inserted, by registry type.",
		}, []string{"registry_type"}),
		UploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsml_upload_bytes_total",
			Help: "Total bytes accepted by the chunked uploader, by backend.",
		}, []string{"backend"}),
		ActiveUploads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsml_active_uploads",
			Help: "Number of multipart upload sessions currently in progress.",
		}),
	}
	reg.MustRegister(r.RequestDuration, r.RequestTotal, r.CardInserts, r.UploadBytes, r.ActiveUploads)
	return r
}

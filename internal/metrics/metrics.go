// Package metrics registers the Prometheus collectors exposed by the
// daemon using promauto's one-shot counter/gauge constructors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this process exports.
type Metrics struct {
	FramesPublished   prometheus.Counter
	FramesDropped     prometheus.Counter
	AcquisitionOver   prometheus.Counter
	AcquisitionTimeout prometheus.Counter
	Subscribers       prometheus.Gauge
	RecorderDropped   prometheus.Counter
	RecorderWritten   prometheus.Counter
	ScanStepsTotal    prometheus.Counter
	ReferenceLocked   prometheus.Gauge
}

// New constructs and registers all collectors against the default
// registry in one call.
func New() *Metrics {
	return &Metrics{
		FramesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_frames_published_total",
			Help: "Spectrum frames written to the shared ring.",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_fanout_frames_dropped_total",
			Help: "Spectrum frames dropped by the WebSocket fan-out due to backpressure.",
		}),
		AcquisitionOver: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_acquisition_overflows_total",
			Help: "Acquisition loop receive errors or short reads.",
		}),
		AcquisitionTimeout: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_acquisition_timeouts_total",
			Help: "Acquisition loop receive timeouts.",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sdrcore_fanout_subscribers",
			Help: "Currently connected WebSocket subscribers.",
		}),
		RecorderDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_recorder_blocks_dropped_total",
			Help: "IQ recorder blocks dropped because no free buffer was available.",
		}),
		RecorderWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_recorder_blocks_written_total",
			Help: "IQ recorder blocks written to disk.",
		}),
		ScanStepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sdrcore_scan_steps_total",
			Help: "Frequency scan steps completed.",
		}),
		ReferenceLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sdrcore_reference_locked",
			Help: "1 if the frequency reference is locked, 0 otherwise.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

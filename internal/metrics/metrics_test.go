package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

// TestNewRegistersAllCollectors exercises every field in one call, since
// promauto registers against the global default registry and a second
// New() in this process would panic on duplicate metric names.
func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()

	m.FramesPublished.Inc()
	m.FramesDropped.Inc()
	m.AcquisitionOver.Inc()
	m.AcquisitionTimeout.Inc()
	m.Subscribers.Set(3)
	m.RecorderDropped.Inc()
	m.RecorderWritten.Inc()
	m.ScanStepsTotal.Inc()
	m.ReferenceLocked.Set(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics handler status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"sdrcore_frames_published_total",
		"sdrcore_fanout_frames_dropped_total",
		"sdrcore_acquisition_overflows_total",
		"sdrcore_acquisition_timeouts_total",
		"sdrcore_fanout_subscribers",
		"sdrcore_recorder_blocks_dropped_total",
		"sdrcore_recorder_blocks_written_total",
		"sdrcore_scan_steps_total",
		"sdrcore_reference_locked",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

package telemetry

import "github.com/sentinelgate/outproc-gateway/internal/port/outbound"

// Recorder adapts Metrics to the port/outbound.Metrics interface the proxy
// core drives.
type Recorder struct {
	m *Metrics
}

// NewRecorder wraps m as a port/outbound.Metrics.
func NewRecorder(m *Metrics) *Recorder {
	return &Recorder{m: m}
}

func (r *Recorder) FrameSent(channel string) {
	r.m.FramesSentTotal.WithLabelValues(channel).Inc()
}

func (r *Recorder) FrameReceived(channel string) {
	r.m.FramesReceivedTotal.WithLabelValues(channel).Inc()
}

func (r *Recorder) Reattached() {
	r.m.ReattachTotal.Inc()
}

func (r *Recorder) SetQueueDepth(n int) {
	r.m.QueueDepth.Set(float64(n))
}

func (r *Recorder) ObserveHandshakeDuration(seconds float64) {
	r.m.HandshakeDurationSeconds.Observe(seconds)
}

var _ outbound.Metrics = (*Recorder)(nil)

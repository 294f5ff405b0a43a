package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
)

// InitMetricsExport configures the global OTel meter provider to export
// periodic metric snapshots to stdout, alongside the Prometheus /metrics
// endpoint. It exists for operators who want a push-style snapshot in
// their process logs without scraping Prometheus — the same
// TracingEnabled flag that turns on span export turns this on too, since
// both are stdout-exporter conveniences for local or small deployments.
func InitMetricsExport(ctx context.Context) (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// MirroredRecorder wraps a Recorder and duplicates frame counts, reattach
// counts and queue depth into OTel counters/gauges on the global meter, so
// a stdout metrics export (enabled via InitMetricsExport) sees those
// signals too. Handshake duration is not mirrored: it is recorded only in
// the Prometheus histogram.
type MirroredRecorder struct {
	*Recorder

	framesSent     metric.Int64Counter
	framesReceived metric.Int64Counter
	reattaches     metric.Int64Counter
	queueDepth     metric.Int64Gauge
}

// NewMirroredRecorder builds a MirroredRecorder backed by rec and the
// package-scoped OTel meter. Call after InitMetricsExport so the
// instruments attach to the exporting provider.
func NewMirroredRecorder(rec *Recorder) (*MirroredRecorder, error) {
	meter := otel.Meter("github.com/sentinelgate/outproc-gateway/internal/telemetry")

	framesSent, err := meter.Int64Counter("outproc.frames_sent_total")
	if err != nil {
		return nil, err
	}
	framesReceived, err := meter.Int64Counter("outproc.frames_received_total")
	if err != nil {
		return nil, err
	}
	reattaches, err := meter.Int64Counter("outproc.reattach_total")
	if err != nil {
		return nil, err
	}
	queueDepth, err := meter.Int64Gauge("outproc.queue_depth")
	if err != nil {
		return nil, err
	}

	return &MirroredRecorder{
		Recorder:       rec,
		framesSent:     framesSent,
		framesReceived: framesReceived,
		reattaches:     reattaches,
		queueDepth:     queueDepth,
	}, nil
}

func (r *MirroredRecorder) FrameSent(channel string) {
	r.Recorder.FrameSent(channel)
	r.framesSent.Add(context.Background(), 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (r *MirroredRecorder) FrameReceived(channel string) {
	r.Recorder.FrameReceived(channel)
	r.framesReceived.Add(context.Background(), 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (r *MirroredRecorder) Reattached() {
	r.Recorder.Reattached()
	r.reattaches.Add(context.Background(), 1)
}

func (r *MirroredRecorder) SetQueueDepth(n int) {
	r.Recorder.SetQueueDepth(n)
	r.queueDepth.Record(context.Background(), int64(n))
}

var _ outbound.Metrics = (*MirroredRecorder)(nil)

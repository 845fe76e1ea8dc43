package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/pvgateway/pkg/metrics"
)

// Metrics holds all gateway metrics
type Metrics struct {
	MessagesTotal      *prometheus.CounterVec
	ValuesTotal        *prometheus.CounterVec
	WaveformsCompleted *prometheus.CounterVec
	WaveformsEvicted   *prometheus.CounterVec
	WaveformSegments   prometheus.Histogram
	PendingWaveforms   *prometheus.GaugeVec
	ErrorsTotal        *prometheus.CounterVec
	QueueDrops         *prometheus.CounterVec
	HoldoffSkips       *prometheus.CounterVec
	UnroutedTotal      prometheus.Counter
	PublishDuration    prometheus.Histogram
}

// NewMetrics creates gateway metrics on reg; a nil reg leaves them unregistered
func NewMetrics(reg prometheus.Registerer) *Metrics {
	r := metrics.NewComponentRegistry(reg, "pvgateway", "channel")

	return &Metrics{
		MessagesTotal: r.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Transport messages by channel and direction",
		}, []string{"channel", "direction"}),

		ValuesTotal: r.NewCounterVec(prometheus.CounterOpts{
			Name: "values_total",
			Help: "PV values forwarded by channel and direction",
		}, []string{"channel", "direction"}),

		WaveformsCompleted: r.NewCounterVec(prometheus.CounterOpts{
			Name: "waveforms_completed_total",
			Help: "Waveforms reassembled from segments",
		}, []string{"channel"}),

		WaveformsEvicted: r.NewCounterVec(prometheus.CounterOpts{
			Name: "waveforms_evicted_total",
			Help: "Incomplete waveforms dropped by drop-distance eviction",
		}, []string{"channel"}),

		WaveformSegments: r.NewHistogram(prometheus.HistogramOpts{
			Name:    "waveform_segments",
			Help:    "Segments per published waveform",
			Buckets: metrics.CountBuckets,
		}),

		PendingWaveforms: r.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pending_waveforms",
			Help: "Incomplete waveforms currently tracked",
		}, []string{"channel"}),

		ErrorsTotal: r.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Errors by channel and kind",
		}, []string{"channel", "kind"}),

		QueueDrops: r.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_drops_total",
			Help: "PV updates dropped because the send queue was full",
		}, []string{"channel"}),

		HoldoffSkips: r.NewCounterVec(prometheus.CounterOpts{
			Name: "holdoff_skips_total",
			Help: "Work skipped because an endpoint was held off",
		}, []string{"channel", "endpoint"}),

		UnroutedTotal: r.NewCounter(prometheus.CounterOpts{
			Name: "unrouted_messages_total",
			Help: "Received messages that matched no channel",
		}),

		PublishDuration: r.NewHistogram(prometheus.HistogramOpts{
			Name:    "publish_duration_seconds",
			Help:    "Time to publish one value including pacing",
			Buckets: metrics.DurationBuckets,
		}),
	}
}

// RecordError counts an error of kind on channel
func (m *Metrics) RecordError(channel, kind string) {
	m.ErrorsTotal.WithLabelValues(channel, kind).Inc()
}

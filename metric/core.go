package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core pipeline metrics.
type Metrics struct {
	// Decode loop
	WindowsProcessed   prometheus.Counter
	WindowsDegraded    prometheus.Counter
	DecisionsTotal     *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	QualityScore       prometheus.Gauge
	LateralizationIdx  prometheus.Gauge

	// Signal quality
	ArtifactsDetected *prometheus.CounterVec
	ChannelSNR        *prometheus.GaugeVec

	// Acquisition
	SamplesReceived   prometheus.Counter
	PacketsCorrupted  prometheus.Counter
	SourceConnected   prometheus.Gauge
	SourceReconnects  prometheus.Counter
	SamplesDropped    prometheus.Counter

	// Publication
	ResultsPublished *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec
}

// NewMetrics creates the core metrics. Callers must register them via
// a MetricsRegistry before use.
func NewMetrics() *Metrics {
	return &Metrics{
		WindowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "windows_processed_total",
			Help:      "Total analysis windows processed",
		}),

		WindowsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "windows_degraded_total",
			Help:      "Windows short-circuited by artifact contamination",
		}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "decisions_total",
			Help:      "Decisions emitted by state",
		}, []string{"state"}),

		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "window_duration_seconds",
			Help:      "Per-window processing duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),

		QualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "quality_score",
			Help:      "Most recent composite quality score (0-100)",
		}),

		LateralizationIdx: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neurostream",
			Subsystem: "decode",
			Name:      "lateralization_index",
			Help:      "Most recent lateralization index (-1 to 1)",
		}),

		ArtifactsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "quality",
			Name:      "artifacts_total",
			Help:      "Artifacts detected by channel and type",
		}, []string{"channel", "type"}),

		ChannelSNR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "neurostream",
			Subsystem: "quality",
			Name:      "channel_snr_db",
			Help:      "Most recent per-channel alpha SNR in dB",
		}, []string{"channel"}),

		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "acquisition",
			Name:      "samples_received_total",
			Help:      "Samples received from the source",
		}),

		PacketsCorrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "acquisition",
			Name:      "packets_corrupted_total",
			Help:      "Lines rejected by the packet parser",
		}),

		SourceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neurostream",
			Subsystem: "acquisition",
			Name:      "source_connected",
			Help:      "Source connection state (0=disconnected, 1=connected)",
		}),

		SourceReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "acquisition",
			Name:      "source_reconnects_total",
			Help:      "Reconnection attempts against the source",
		}),

		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "acquisition",
			Name:      "samples_dropped_total",
			Help:      "Samples evicted from full channel buffers",
		}),

		ResultsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "output",
			Name:      "results_published_total",
			Help:      "Results written by sink",
		}, []string{"sink"}),

		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neurostream",
			Subsystem: "output",
			Name:      "publish_errors_total",
			Help:      "Publish failures by sink",
		}, []string{"sink"}),
	}
}

func (m *Metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.WindowsProcessed,
		m.WindowsDegraded,
		m.DecisionsTotal,
		m.ProcessingDuration,
		m.QualityScore,
		m.LateralizationIdx,
		m.ArtifactsDetected,
		m.ChannelSNR,
		m.SamplesReceived,
		m.PacketsCorrupted,
		m.SourceConnected,
		m.SourceReconnects,
		m.SamplesDropped,
		m.ResultsPublished,
		m.PublishErrors,
	)
}

// ObserveWindow records one processed window.
func (m *Metrics) ObserveWindow(state string, duration time.Duration, quality float64) {
	m.WindowsProcessed.Inc()
	m.DecisionsTotal.WithLabelValues(state).Inc()
	m.ProcessingDuration.Observe(duration.Seconds())
	m.QualityScore.Set(quality)
}

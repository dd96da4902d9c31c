package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the relay pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ingest
	ChunksAccepted prometheus.Counter
	ChunksRejected prometheus.Counter

	// Stages
	StageProcessed *prometheus.CounterVec
	StageDropped   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	QueueDepth     *prometheus.GaugeVec

	// Translation
	TranslateRetries prometheus.Counter

	// Delivery
	Listeners        *prometheus.GaugeVec
	Deliveries       *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// falls back to the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ChunksAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_chunks_accepted_total",
			Help: "Total number of audio chunks accepted at ingest",
		}),
		ChunksRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_chunks_rejected_total",
			Help: "Total number of audio chunks rejected because the pipeline was stopping",
		}),

		StageProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_stage_processed_total",
			Help: "Total number of items a stage forwarded downstream",
		}, []string{"stage"}),
		StageDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_stage_dropped_total",
			Help: "Total number of items a stage dropped",
		}, []string{"stage", "reason"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_stage_duration_seconds",
			Help:    "Time spent on one item per stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"stage"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Items waiting in a stage queue",
		}, []string{"queue"}),

		TranslateRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_translate_retries_total",
			Help: "Total number of translation attempts after the first",
		}),

		Listeners: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_listeners",
			Help: "Registered listener connections per channel",
		}, []string{"channel"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of payloads delivered to listeners",
		}, []string{"channel"}),
		DeliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Total number of failed sends to listeners",
		}, []string{"channel"}),
	}
}

func (m *Metrics) RecordChunkAccepted() {
	if m == nil {
		return
	}
	m.ChunksAccepted.Inc()
}

func (m *Metrics) RecordChunkRejected() {
	if m == nil {
		return
	}
	m.ChunksRejected.Inc()
}

// RecordProcessed records an item forwarded by stage and how long it took.
func (m *Metrics) RecordProcessed(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageProcessed.WithLabelValues(stage).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordDropped records an item dropped by stage.
func (m *Metrics) RecordDropped(stage, reason string) {
	if m == nil {
		return
	}
	m.StageDropped.WithLabelValues(stage, reason).Inc()
}

func (m *Metrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (m *Metrics) RecordTranslateRetry() {
	if m == nil {
		return
	}
	m.TranslateRetries.Inc()
}

func (m *Metrics) SetListeners(channel string, count int) {
	if m == nil {
		return
	}
	m.Listeners.WithLabelValues(channel).Set(float64(count))
}

// RecordBroadcast records the outcome of one channel broadcast.
func (m *Metrics) RecordBroadcast(channel string, delivered, failed int) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(channel).Add(float64(delivered))
	if failed > 0 {
		m.DeliveryFailures.WithLabelValues(channel).Add(float64(failed))
	}
}

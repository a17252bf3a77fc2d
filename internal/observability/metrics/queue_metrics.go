package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAcked        = "acked"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
)

// QueueMetrics tracks delivery health per queue.
type QueueMetrics struct {
	received        *prometheus.CounterVec
	completed       *prometheus.CounterVec
	deadLettered    *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	batchSize       *prometheus.HistogramVec
	depth           *prometheus.GaugeVec
}

func NewQueueMetrics(registerer prometheus.Registerer, cfg Config) *QueueMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "orderflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &QueueMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderflow_queue_received_total",
			Help:        "Messages leased from a queue.",
			ConstLabels: constLabels,
		}, []string{"queue"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderflow_queue_completed_total",
			Help:        "Message completions by outcome.",
			ConstLabels: constLabels,
		}, []string{"queue", "outcome"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "orderflow_queue_dead_lettered_total",
			Help:        "Messages moved to the dead letter sink by reason.",
			ConstLabels: constLabels,
		}, []string{"queue", "reason"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderflow_consumer_handler_duration_seconds",
			Help:        "Per-message handler latency.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"queue"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "orderflow_consumer_batch_size",
			Help:        "Messages per received batch.",
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
			ConstLabels: constLabels,
		}, []string{"queue"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "orderflow_queue_depth",
			Help:        "Messages currently stored in a queue by state.",
			ConstLabels: constLabels,
		}, []string{"queue", "state"}),
	}

	registerer.MustRegister(
		m.received,
		m.completed,
		m.deadLettered,
		m.handlerDuration,
		m.batchSize,
		m.depth,
	)
	return m
}

func (m *QueueMetrics) Received(queue string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.received.WithLabelValues(queue).Add(float64(n))
	m.batchSize.WithLabelValues(queue).Observe(float64(n))
}

func (m *QueueMetrics) Completed(queue, outcome string) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(queue, outcome).Inc()
}

func (m *QueueMetrics) DeadLettered(queue, reason string) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(queue, reason).Inc()
	m.completed.WithLabelValues(queue, OutcomeDeadLettered).Inc()
}

func (m *QueueMetrics) ObserveHandler(queue string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

func (m *QueueMetrics) SetDepth(queue string, visible, inFlight int64) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues(queue, "visible").Set(float64(visible))
	m.depth.WithLabelValues(queue, "in_flight").Set(float64(inFlight))
}

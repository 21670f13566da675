package metrics

import (
	"strconv"
	"sync"

	"github.com/apandit646/droploc/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing one
// that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	connTransitions *prometheus.CounterVec
	connState       prometheus.Gauge
	connectAttempts *prometheus.CounterVec
	connectLatency  prometheus.Histogram
	cellChanges     prometheus.Counter
	activeSubs      prometheus.Gauge
	snapshots       prometheus.Counter
	snapshotSize    prometheus.Histogram
	malformed       *prometheus.CounterVec
	heartbeats      *prometheus.CounterVec
	enqueued        prometheus.Counter
	resolutions     *prometheus.CounterVec
	displaySeconds  *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	lookups         *prometheus.CounterVec
	lookupLatency   prometheus.Histogram
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "droploc" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "droploc"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.connTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total session state transitions by target state.",
		}, []string{"from", "to"})

		p.connState = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "connected",
			Help:      "Session status (1=connected,0=not connected).",
		})

		p.connectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Total connect attempts by result (success,failure).",
		}, []string{"result"})

		p.connectLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "connect_duration_seconds",
			Help:      "Time taken to establish a session in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		p.cellChanges = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cell",
			Name:      "changes_total",
			Help:      "Total moves of the location subscription to a new cell.",
		})

		p.activeSubs = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "cell",
			Name:      "active_subscriptions",
			Help:      "Live location-broadcast subscriptions (never above 1).",
		})

		p.snapshots = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cell",
			Name:      "snapshots_total",
			Help:      "Total candidate snapshots received on the active cell topic.",
		})

		p.snapshotSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "cell",
			Name:      "snapshot_candidates",
			Help:      "Number of candidates per snapshot.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 .. 128
		})

		p.malformed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "malformed_messages_total",
			Help:      "Total dropped inbound payloads by kind (candidates,notification,cell).",
		}, []string{"kind"})

		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "heartbeat",
			Name:      "ticks_total",
			Help:      "Total heartbeat ticks by outcome (published,skipped,failed).",
		}, []string{"outcome"})

		p.enqueued = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total ride requests accepted into the notification queue.",
		})

		p.resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "resolutions_total",
			Help:      "Total terminal actions by resolution (accepted,declined,expired).",
		}, []string{"resolution"})

		p.displaySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "display_seconds",
			Help:      "Time a request spent in the display slot in seconds.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10},
		}, []string{"resolution"})

		p.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Requests waiting behind the display slot.",
		})

		p.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lookup",
			Name:      "requests_total",
			Help:      "Total cell address lookups by result and cache use.",
		}, []string{"result", "cached"})

		p.lookupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lookup",
			Name:      "duration_seconds",
			Help:      "Latency of cell address lookups in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms .. ~3.8s
		})

		p.reg.MustRegister(
			p.connTransitions,
			p.connState,
			p.connectAttempts,
			p.connectLatency,
			p.cellChanges,
			p.activeSubs,
			p.snapshots,
			p.snapshotSize,
			p.malformed,
			p.heartbeats,
			p.enqueued,
			p.resolutions,
			p.displaySeconds,
			p.queueDepth,
			p.lookups,
			p.lookupLatency,
		)
	})
}

// RecordConnectionTransition counts the transition and updates the connected gauge.
func (p *PrometheusCollector) RecordConnectionTransition(from, to types.ConnectionState) {
	p.ensureRegistered()
	p.connTransitions.WithLabelValues(from.String(), to.String()).Inc()
	if to.IsConnected() {
		p.connState.Set(1)
	} else {
		p.connState.Set(0)
	}
}

// RecordConnectAttempt counts the attempt and observes its latency.
func (p *PrometheusCollector) RecordConnectAttempt(success bool, duration float64) {
	p.ensureRegistered()
	p.connectAttempts.WithLabelValues(result(success)).Inc()
	p.connectLatency.Observe(duration)
}

// RecordCellChange increments the cell change counter.
func (p *PrometheusCollector) RecordCellChange() {
	p.ensureRegistered()
	p.cellChanges.Inc()
}

// RecordActiveSubscriptions sets the live subscription gauge.
func (p *PrometheusCollector) RecordActiveSubscriptions(count int) {
	p.ensureRegistered()
	p.activeSubs.Set(float64(count))
}

// RecordCandidateSnapshot counts a snapshot and observes its size.
func (p *PrometheusCollector) RecordCandidateSnapshot(count int) {
	p.ensureRegistered()
	p.snapshots.Inc()
	p.snapshotSize.Observe(float64(count))
}

// RecordMalformedMessage increments dropped payloads for kind.
func (p *PrometheusCollector) RecordMalformedMessage(kind string) {
	p.ensureRegistered()
	p.malformed.WithLabelValues(kind).Inc()
}

// RecordHeartbeat increments the tick outcome counter.
func (p *PrometheusCollector) RecordHeartbeat(outcome string) {
	p.ensureRegistered()
	p.heartbeats.WithLabelValues(outcome).Inc()
}

// RecordEnqueue increments the enqueue counter.
func (p *PrometheusCollector) RecordEnqueue() {
	p.ensureRegistered()
	p.enqueued.Inc()
}

// RecordResolution counts the resolution and observes display time.
func (p *PrometheusCollector) RecordResolution(resolution types.Resolution, displayed float64) {
	p.ensureRegistered()
	p.resolutions.WithLabelValues(resolution.String()).Inc()
	p.displaySeconds.WithLabelValues(resolution.String()).Observe(displayed)
}

// RecordQueueDepth sets the pending gauge.
func (p *PrometheusCollector) RecordQueueDepth(depth int) {
	p.ensureRegistered()
	p.queueDepth.Set(float64(depth))
}

// RecordLookup counts the lookup and observes its latency.
func (p *PrometheusCollector) RecordLookup(success, cached bool, duration float64) {
	p.ensureRegistered()
	p.lookups.WithLabelValues(result(success), strconv.FormatBool(cached)).Inc()
	p.lookupLatency.Observe(duration)
}

func result(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

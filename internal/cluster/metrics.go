package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricStreamsCreated     = "cluster_streams_created_total"
	MetricStreamsEnded       = "cluster_streams_ended_total"
	MetricEventsFormed       = "cluster_events_formed_total"
	MetricEventsEnded        = "cluster_events_ended_total"
	MetricPlacements         = "cluster_placements_total"
	MetricPlacementLatency   = "cluster_placement_latency_seconds"
	MetricPlacementLabelKind = "decision"
)

// Metrics contains Prometheus metrics for the clustering engine.
// All operations are thread-safe and tolerate a nil receiver, so metrics
// can be disabled by passing nil to NewEngine.
type Metrics struct {
	streamsCreated   prometheus.Counter
	streamsEnded     prometheus.Counter
	eventsFormed     prometheus.Counter
	eventsEnded      prometheus.Counter
	placements       *prometheus.CounterVec
	placementLatency prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		streamsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStreamsCreated,
			Help: "Total number of streams registered with the clustering engine",
		}),
		streamsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStreamsEnded,
			Help: "Total number of streams ended",
		}),
		eventsFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsFormed,
			Help: "Total number of events formed from co-located streams",
		}),
		eventsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsEnded,
			Help: "Total number of events whose last live member ended",
		}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPlacements,
			Help: "Total number of placement evaluations by decision",
		}, []string{MetricPlacementLabelKind}),
		placementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricPlacementLatency,
			Help:    "Histogram of placement evaluation latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.streamsCreated,
		m.streamsEnded,
		m.eventsFormed,
		m.eventsEnded,
		m.placements,
		m.placementLatency,
	}
}

func (m *Metrics) incStreamsCreated() {
	if m == nil {
		return
	}
	m.streamsCreated.Inc()
}

func (m *Metrics) incStreamsEnded() {
	if m == nil {
		return
	}
	m.streamsEnded.Inc()
}

func (m *Metrics) incEventsFormed() {
	if m == nil {
		return
	}
	m.eventsFormed.Inc()
}

func (m *Metrics) incEventsEnded() {
	if m == nil {
		return
	}
	m.eventsEnded.Inc()
}

func (m *Metrics) observePlacement(d Decision, seconds float64) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(string(d)).Inc()
	m.placementLatency.Observe(seconds)
}

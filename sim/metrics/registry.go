// Package metrics exports simulation counters through a Prometheus registry.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/server-sim/server-sim/sim"
)

// Registry holds all simulation metrics. It implements sim.Observer.
type Registry struct {
	RequestsGenerated  *prometheus.CounterVec
	RequestsDelivered  *prometheus.CounterVec
	RequestsDropped    *prometheus.CounterVec
	RequestsTerminated *prometheus.CounterVec
	RequestLatency     *prometheus.HistogramVec
	QueueDepth         *prometheus.GaugeVec
	NodeDegradation    *prometheus.GaugeVec
	TicksTotal         prometheus.Counter
	Clock              prometheus.Gauge

	registry *prometheus.Registry
}

var _ sim.Observer = (*Registry)(nil)

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	factory := promauto.With(r.registry)

	r.RequestsGenerated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serversim_requests_generated_total",
			Help: "Requests created by producers",
		},
		[]string{"node", "type"},
	)
	r.RequestsDelivered = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serversim_requests_delivered_total",
			Help: "Requests drained by consumers",
		},
		[]string{"node", "type"},
	)
	r.RequestsDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serversim_requests_dropped_total",
			Help: "Matured requests no outgoing connection accepted",
		},
		[]string{"node", "type"},
	)
	r.RequestsTerminated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serversim_requests_terminated_total",
			Help: "Requests force-ended by node removal",
		},
		[]string{"node"},
	)
	r.RequestLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serversim_request_latency_ticks",
			Help:    "End-to-end latency of delivered requests in ticks",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
		[]string{"node"},
	)
	r.QueueDepth = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serversim_queue_depth",
			Help: "Pending requests per node at the end of the last pass",
		},
		[]string{"node"},
	)
	r.NodeDegradation = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serversim_node_degradation",
			Help: "Degradation level per node at the end of the last pass",
		},
		[]string{"node"},
	)
	r.TicksTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "serversim_passes_total",
			Help: "Completed network passes",
		},
	)
	r.Clock = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "serversim_clock_ticks",
			Help: "Simulation clock of the last completed pass",
		},
	)
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

func (r *Registry) RequestGenerated(_ int64, producer *sim.Node, req *sim.Request) {
	r.RequestsGenerated.WithLabelValues(producer.Label(), string(req.Type)).Inc()
}

func (r *Registry) RequestDelivered(_ int64, consumer *sim.Node, req *sim.Request) {
	r.RequestsDelivered.WithLabelValues(consumer.Label(), string(req.Type)).Inc()
	r.RequestLatency.WithLabelValues(consumer.Label()).Observe(float64(req.Latency()))
}

func (r *Registry) RequestDropped(_ int64, node *sim.Node, entry sim.PendingEntry) {
	r.RequestsDropped.WithLabelValues(node.Label(), string(entry.Request.Type)).Inc()
}

func (r *Registry) RequestTerminated(_ int64, node *sim.Node, _ *sim.Request) {
	r.RequestsTerminated.WithLabelValues(node.Label()).Inc()
}

func (r *Registry) TickCompleted(tick int64, network *sim.Network) {
	r.TicksTotal.Inc()
	r.Clock.Set(float64(tick))
	// removed nodes must not keep reporting their last depth
	r.QueueDepth.Reset()
	r.NodeDegradation.Reset()
	for _, node := range network.Nodes() {
		r.QueueDepth.WithLabelValues(node.Label()).Set(float64(node.QueueLen()))
		r.NodeDegradation.WithLabelValues(node.Label()).Set(node.Degradation())
	}
}

// WriteText writes every gathered metric family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

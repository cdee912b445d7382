package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector backed by Prometheus metrics.
type Prometheus struct {
	positionsAccepted prometheus.Counter
	positionsRejected *prometheus.CounterVec
	sideEffectFailed  *prometheus.CounterVec
	geofenceAlerts    prometheus.Counter
	sessions          *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
	eventDeliveries   *prometheus.CounterVec
	eventsDropped     *prometheus.CounterVec
	subscribers       prometheus.Gauge
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
// reg defaults to prometheus.DefaultRegisterer and namespace to "fleet".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "fleet"
	}

	p := &Prometheus{
		positionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "positions_accepted_total",
			Help:      "Position updates accepted by the gateway.",
		}),
		positionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "positions_rejected_total",
			Help:      "Position updates rejected by the gateway, by reason.",
		}, []string{"reason"}),
		sideEffectFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed and were suppressed, by kind.",
		}, []string{"kind"}),
		geofenceAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geofence",
			Name:      "violations_total",
			Help:      "Geofence violations raised.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "transitions_total",
			Help:      "Tracking session transitions (start, stop).",
		}, []string{"kind"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Events published to the hub, by event name.",
		}, []string{"event"}),
		eventDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Events handed to subscriber buffers, by event name.",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Deliveries skipped because the subscriber buffer was full.",
		}, []string{"event"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Currently connected subscribers.",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.positionsAccepted, p.positionsRejected, p.sideEffectFailed, p.geofenceAlerts,
		p.sessions, p.eventsPublished, p.eventDeliveries, p.eventsDropped, p.subscribers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Prometheus) PositionAccepted() { p.positionsAccepted.Inc() }

func (p *Prometheus) PositionRejected(reason string) {
	p.positionsRejected.WithLabelValues(reason).Inc()
}

func (p *Prometheus) SideEffectFailed(kind string) {
	p.sideEffectFailed.WithLabelValues(kind).Inc()
}

func (p *Prometheus) GeofenceViolations(n int) {
	if n > 0 {
		p.geofenceAlerts.Add(float64(n))
	}
}

func (p *Prometheus) SessionTransition(kind string) {
	p.sessions.WithLabelValues(kind).Inc()
}

func (p *Prometheus) EventPublished(event string, delivered int) {
	p.eventsPublished.WithLabelValues(event).Inc()
	p.eventDeliveries.WithLabelValues(event).Add(float64(delivered))
}

func (p *Prometheus) EventDropped(event string) {
	p.eventsDropped.WithLabelValues(event).Inc()
}

func (p *Prometheus) Subscribers(n int) { p.subscribers.Set(float64(n)) }

package linking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for session lifecycle events.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	created    *prometheus.CounterVec
	closed     *prometheus.CounterVec
	milestones *prometheus.CounterVec
	failures   *prometheus.CounterVec
	live       prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg (if non-nil).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walink",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Linking sessions created, by kind.",
		}, []string{"kind"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walink",
			Subsystem: "session",
			Name:      "closed_total",
			Help:      "Linking sessions closed, by kind and reason.",
		}, []string{"kind", "reason"}),
		milestones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walink",
			Subsystem: "session",
			Name:      "milestones_total",
			Help:      "Pairing codes and QR images delivered, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walink",
			Subsystem: "flow",
			Name:      "failures_total",
			Help:      "Flow failures reported to callers, by kind and error class.",
		}, []string{"kind", "error"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "walink",
			Subsystem: "session",
			Name:      "live",
			Help:      "Sessions currently holding a client and credential context.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.created, m.closed, m.milestones, m.failures, m.live} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) sessionCreated(k Kind) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(k.String()).Inc()
	m.live.Inc()
}

func (m *Metrics) sessionClosed(k Kind, reason CloseReason) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(k.String(), string(reason)).Inc()
	m.live.Dec()
}

func (m *Metrics) milestone(k Kind) {
	if m == nil {
		return
	}
	m.milestones.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) failure(k Kind, class string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(k.String(), class).Inc()
}

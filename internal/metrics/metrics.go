// Package metrics holds the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the domain counters. A nil *Metrics is valid and records
// nothing, so handlers need no checks when metrics are disabled.
type Metrics struct {
	contactsLogged    *prometheus.CounterVec
	statsComputations prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		contactsLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qslx_contacts_logged_total",
			Help: "Contacts written, by event type.",
		}, []string{"event"}),
		statsComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qslx_stats_computations_total",
			Help: "Statistics snapshots computed.",
		}),
	}
	for _, c := range []prometheus.Collector{m.contactsLogged, m.statsComputations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ContactWritten counts a successful write, labelled by its event type.
func (m *Metrics) ContactWritten(event string) {
	if m == nil {
		return
	}
	m.contactsLogged.WithLabelValues(event).Inc()
}

// StatsComputed counts one aggregation run.
func (m *Metrics) StatsComputed() {
	if m == nil {
		return
	}
	m.statsComputations.Inc()
}

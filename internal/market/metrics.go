package market

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ingestion outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	observations        *prometheus.CounterVec
	rejected            *prometheus.CounterVec
	staleObservations   *prometheus.CounterVec
	invariantViolations *prometheus.CounterVec
	identitiesCreated   prometheus.Counter
	identityConflicts   prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "observations_recorded_total",
			Help:      "Price observations appended to the snapshot stream.",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "observations_rejected_total",
			Help:      "Price observations rejected at ingestion.",
		}, []string{"source", "reason"}),
		staleObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "observations_stale_total",
			Help:      "Observations stored but older than the current value for their source.",
		}, []string{"source"}),
		invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "observed_at_ties_total",
			Help:      "Duplicate (item, source, observed_at) observations seen on write or read.",
		}, []string{"source"}),
		identitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "identities_created_total",
			Help:      "Item identities created.",
		}),
		identityConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csgo_market",
			Name:      "identity_conflicts_total",
			Help:      "Identity creations that lost the unique-index race and re-fetched.",
		}),
	}
	reg.MustRegister(
		m.observations,
		m.rejected,
		m.staleObservations,
		m.invariantViolations,
		m.identitiesCreated,
		m.identityConflicts,
	)
	return m
}

func (m *Metrics) recorded(source string, advanced bool) {
	if m == nil {
		return
	}
	m.observations.WithLabelValues(source).Inc()
	if !advanced {
		m.staleObservations.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) reject(source, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) tie(source string) {
	if m == nil {
		return
	}
	m.invariantViolations.WithLabelValues(source).Inc()
}

func (m *Metrics) identityCreated() {
	if m == nil {
		return
	}
	m.identitiesCreated.Inc()
}

func (m *Metrics) identityConflict() {
	if m == nil {
		return
	}
	m.identityConflicts.Inc()
}

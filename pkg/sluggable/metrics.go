package sluggable

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts slug generation activity per model and slug field.
type Metrics struct {
	Generated  *prometheus.CounterVec
	Collisions *prometheus.CounterVec
	History    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sluggable",
			Name:      "slugs_generated_total",
			Help:      "Slugs written to records, by model and field.",
		}, []string{"model", "field"}),
		Collisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sluggable",
			Name:      "slug_collisions_total",
			Help:      "Candidate slugs that had to be disambiguated, by model and field.",
		}, []string{"model", "field"}),
		History: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sluggable",
			Name:      "slug_history_entries_total",
			Help:      "Slug history entries created or redefined, by model and field.",
		}, []string{"model", "field"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Generated, m.Collisions, m.History} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) generated(model, field string) {
	if m != nil {
		m.Generated.WithLabelValues(model, field).Inc()
	}
}

func (m *Metrics) collision(model, field string) {
	if m != nil {
		m.Collisions.WithLabelValues(model, field).Inc()
	}
}

func (m *Metrics) history(model, field string) {
	if m != nil {
		m.History.WithLabelValues(model, field).Inc()
	}
}

package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts workflow outcomes and inconsistent states. A nil *Metrics records nothing.
type Metrics struct {
	workflows       *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
}

// NewMetrics registers the service counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		workflows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileshare_workflow_total",
				Help: "Finished file lifecycle workflows by terminal outcome.",
			},
			[]string{"workflow", "outcome"},
		),
		inconsistencies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileshare_inconsistent_state_total",
				Help: "Partial failures that left object storage and metadata out of step.",
			},
			[]string{"kind"},
		),
	}
	for _, c := range []prometheus.Collector{m.workflows, m.inconsistencies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(w Workflow, o Outcome) {
	if m == nil {
		return
	}
	m.workflows.WithLabelValues(string(w), string(o)).Inc()
}

func (m *Metrics) inconsistent(kind InconsistencyKind) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(string(kind)).Inc()
}

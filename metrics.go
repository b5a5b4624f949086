package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stage outcomes
const (
	OutcomePassed   = "passed"
	OutcomeRejected = "rejected"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// Refresh token operations
const (
	RefreshOpIssued  = "issued"
	RefreshOpRotated = "rotated"
	RefreshOpKept    = "kept"
	RefreshOpRevoked = "revoked"
	RefreshOpExpired = "expired"
)

// Metrics records authorization decisions and session activity
type Metrics interface {
	PipelineDecision(stage, outcome string)
	RefreshTokenOperation(operation string)
}

type noopMetrics struct{}

func (noopMetrics) PipelineDecision(string, string) {}
func (noopMetrics) RefreshTokenOperation(string)    {}

// NoopMetrics discards every observation
func NoopMetrics() Metrics { return noopMetrics{} }

// PrometheusMetrics exports counters to a prometheus registry
type PrometheusMetrics struct {
	decisions *prometheus.CounterVec
	refresh   *prometheus.CounterVec
}

// NewPrometheusMetrics registers the counters with reg. A nil reg uses the
// default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamauth",
			Name:      "pipeline_decisions_total",
			Help:      "Request pipeline stage outcomes.",
		}, []string{"stage", "outcome"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamauth",
			Name:      "refresh_tokens_total",
			Help:      "Refresh token lifecycle operations.",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.refresh} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *PrometheusMetrics) PipelineDecision(stage, outcome string) {
	m.decisions.WithLabelValues(stage, outcome).Inc()
}

func (m *PrometheusMetrics) RefreshTokenOperation(operation string) {
	m.refresh.WithLabelValues(operation).Inc()
}

// DecisionCounter exposes the underlying vector, mostly for tests
func (m *PrometheusMetrics) DecisionCounter() *prometheus.CounterVec { return m.decisions }

// RefreshCounter exposes the underlying vector, mostly for tests
func (m *PrometheusMetrics) RefreshCounter() *prometheus.CounterVec { return m.refresh }

package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the triage and handoff flows.
type TriageMetrics struct {
	assessmentsTotal  *prometheus.CounterVec
	escalationsTotal  *prometheus.CounterVec
	assignmentsTotal  *prometheus.CounterVec
	classifierLatency *prometheus.HistogramVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		assessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telecare",
			Subsystem: "triage",
			Name:      "assessments_total",
			Help:      "Total triage assessments by severity and outcome",
		}, []string{"severity", "outcome"}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telecare",
			Subsystem: "triage",
			Name:      "escalations_total",
			Help:      "Total escalation attempts by trigger and result",
		}, []string{"trigger", "result"}),
		assignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telecare",
			Subsystem: "handoff",
			Name:      "assignments_total",
			Help:      "Total doctor assignment attempts by specialty and result",
		}, []string{"specialty", "result"}),
		classifierLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telecare",
			Subsystem: "triage",
			Name:      "classifier_latency_seconds",
			Help:      "Latency of classifier completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.assessmentsTotal, m.escalationsTotal, m.assignmentsTotal, m.classifierLatency)
	return m
}

func (m *TriageMetrics) ObserveAssessment(severity, outcome string) {
	if m == nil {
		return
	}
	m.assessmentsTotal.WithLabelValues(severity, outcome).Inc()
}

func (m *TriageMetrics) ObserveEscalation(trigger, result string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(trigger, result).Inc()
}

func (m *TriageMetrics) ObserveAssignment(specialty, result string) {
	if m == nil {
		return
	}
	m.assignmentsTotal.WithLabelValues(specialty, result).Inc()
}

func (m *TriageMetrics) ObserveClassifierLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.classifierLatency.WithLabelValues(provider).Observe(seconds)
}

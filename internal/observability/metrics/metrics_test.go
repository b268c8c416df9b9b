package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTriageMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)
	m.ObserveAssessment("high", "ok")
	m.ObserveEscalation("classifier", "assigned")
	m.ObserveAssignment("Cardiology", "no_doctor")
	m.ObserveClassifierLatency("gemini", 0.42)
}

func TestTriageMetricsNilSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveAssessment("low", "ok")
	m.ObserveEscalation("override", "failed")
	m.ObserveAssignment("General Practice", "assigned")
	m.ObserveClassifierLatency("bedrock", 0.1)
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveCommandRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSurveyCollector(reg)
	if err != nil {
		t.Fatalf("NewSurveyCollector: %v", err)
	}

	collector.ObserveCommand("addPlanet", OutcomeOK, 2*time.Millisecond)
	collector.ObserveCommand("addPlanet", OutcomeRejected, time.Millisecond)
	collector.ObserveCommand("", OutcomeUsage, time.Microsecond)

	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("addPlanet", OutcomeOK)); got != 1 {
		t.Fatalf("planetsim_commands_total ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("addPlanet", OutcomeRejected)); got != 1 {
		t.Fatalf("planetsim_commands_total rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("unknown", OutcomeUsage)); got != 1 {
		t.Fatalf("planetsim_commands_total unknown = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "planetsim_command_duration_seconds", map[string]string{
		"command": "addPlanet",
	}); count != 2 {
		t.Fatalf("planetsim_command_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *SurveyCollector
	collector.ObserveCommand("exit", OutcomeOK, time.Millisecond)
	collector.SetBodyCounts(1, 2, 3)
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSurveyCollector(reg)
	if err != nil {
		t.Fatalf("first NewSurveyCollector: %v", err)
	}
	second, err := NewSurveyCollector(reg)
	if err != nil {
		t.Fatalf("second NewSurveyCollector: %v", err)
	}
	if first.Commands != second.Commands || first.Bodies != second.Bodies {
		t.Fatalf("expected second collector to reuse registered vectors")
	}
}

func TestMetricsHandlerExposesBodyGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSurveyCollector(reg)
	if err != nil {
		t.Fatalf("NewSurveyCollector: %v", err)
	}
	collector.SetBodyCounts(1, 4, 7)
	collector.ObserveCommand("getPathTo", OutcomeOK, time.Millisecond)

	if got := testutil.ToFloat64(collector.Bodies.WithLabelValues("moon")); got != 7 {
		t.Fatalf("planetsim_bodies{kind=moon} = %v, want 7", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"planetsim_commands_total",
		"planetsim_command_duration_seconds",
		`planetsim_bodies{kind="star"} 1`,
		`planetsim_bodies{kind="planet"} 4`,
		`planetsim_bodies{kind="moon"} 7`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

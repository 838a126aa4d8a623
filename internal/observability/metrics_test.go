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

	"rednet.ai/internal/sim/grid"
)

func TestObserveTickRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGridCollector(reg)
	if err != nil {
		t.Fatalf("NewGridCollector: %v", err)
	}

	c.ObserveTick(grid.TickStats{Sweeps: 2, Merges: 1, Networks: 3, Ticking: 2, Conduits: 9, Duration: time.Millisecond})
	c.ObserveTick(grid.TickStats{Sweeps: 1, Deferred: 1, Networks: 2, Ticking: 1, Conduits: 7, Duration: time.Millisecond})

	if got := testutil.ToFloat64(c.Ticks); got != 2 {
		t.Fatalf("rednet_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Work.WithLabelValues("sweeps")); got != 3 {
		t.Fatalf("sweeps = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Work.WithLabelValues("deferred")); got != 1 {
		t.Fatalf("deferred = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Networks); got != 2 {
		t.Fatalf("rednet_networks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Conduits); got != 7 {
		t.Fatalf("rednet_conduits = %v, want 7", got)
	}
	if count := histogramSampleCount(t, reg, "rednet_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("rednet_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewGridCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewGridCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	a.ObserveTick(grid.TickStats{})
	if got := testutil.ToFloat64(b.Ticks); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesSinkGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewGridCollector(reg)
	if err != nil {
		t.Fatalf("NewGridCollector: %v", err)
	}
	c.ObserveSink("index", 4, 11)
	c.ObserveTick(grid.TickStats{Networks: 1})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`rednet_sink_dropped{sink="index"} 4`,
		`rednet_sink_queue_depth{sink="index"} 11`,
		"rednet_networks 1",
		"rednet_tick_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in /metrics output", want)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *GridCollector
	c.ObserveTick(grid.TickStats{})
	c.ObserveSink("x", 1, 1)
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

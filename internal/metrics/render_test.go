package metrics

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// newRenderRegistry builds a private registry with known metric values so
// assertions don't depend on the package-level collector metrics.
func newRenderRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	exits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_exits_total",
			Help: "Test exit counter.",
		},
		[]string{"class"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "test_active_units",
			Help: "Test active gauge.",
		},
	)
	registry.MustRegister(exits, active)

	exits.WithLabelValues("clean").Add(3)
	exits.WithLabelValues("signal").Add(2)
	active.Set(7)

	return registry
}

// =============================================================================
// Tests: WriteSnapshot / Snapshot
// =============================================================================

func TestWriteSnapshot(t *testing.T) {
	registry := newRenderRegistry()

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, registry); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# HELP test_active_units",
		"# TYPE test_active_units gauge",
		"test_active_units 7",
		"# TYPE test_exits_total counter",
		`test_exits_total{class="clean"} 3`,
		`test_exits_total{class="signal"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteSnapshot() output missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestSnapshot(t *testing.T) {
	registry := newRenderRegistry()

	out, err := Snapshot(registry)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !strings.Contains(out, "test_active_units 7") {
		t.Errorf("Snapshot() missing gauge value\noutput:\n%s", out)
	}
}

func TestSnapshot_CollectorRegistry(t *testing.T) {
	_, registry := newTestCollector(CollectorConfig{
		TargetUnits: 4,
		Workload:    "/tmp/work/hackbench/hackbench 20",
		Archive:     "hackbench.tar.gz",
	})

	out, err := Snapshot(registry)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	for _, name := range []string{
		"hackbench_load_info",
		"hackbench_load_target_units",
		"hackbench_load_exits_total",
		"hackbench_load_workload_run_seconds",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("Snapshot() missing %q", name)
		}
	}
}

func TestSnapshot_GatherError(t *testing.T) {
	failing := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		return nil, errors.New("registry exploded")
	})

	if _, err := Snapshot(failing); err == nil {
		t.Error("Snapshot() error = nil, want gather error")
	}
}

// =============================================================================
// Tests: MetricValue
// =============================================================================

func TestMetricValue(t *testing.T) {
	registry := newRenderRegistry()

	tests := []struct {
		name      string
		metric    string
		labels    map[string]string
		wantValue float64
		wantFound bool
	}{
		{
			name:      "gauge without labels",
			metric:    "test_active_units",
			wantValue: 7,
			wantFound: true,
		},
		{
			name:      "counter with matching label",
			metric:    "test_exits_total",
			labels:    map[string]string{"class": "clean"},
			wantValue: 3,
			wantFound: true,
		},
		{
			name:      "counter with other label value",
			metric:    "test_exits_total",
			labels:    map[string]string{"class": "signal"},
			wantValue: 2,
			wantFound: true,
		},
		{
			name:      "label value not present",
			metric:    "test_exits_total",
			labels:    map[string]string{"class": "error"},
			wantFound: false,
		},
		{
			name:      "unknown metric name",
			metric:    "test_bogus_total",
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := MetricValue(registry, tt.metric, tt.labels)
			if found != tt.wantFound {
				t.Fatalf("MetricValue(%q, %v) found = %v, want %v", tt.metric, tt.labels, found, tt.wantFound)
			}
			if found && got != tt.wantValue {
				t.Errorf("MetricValue(%q, %v) = %v, want %v", tt.metric, tt.labels, got, tt.wantValue)
			}
		})
	}
}

func TestMetricValue_EmptyLabelsMatchFirst(t *testing.T) {
	registry := newRenderRegistry()

	// With no label filter any metric in the family matches.
	if _, found := MetricValue(registry, "test_exits_total", nil); !found {
		t.Error("MetricValue() with nil labels should match a labeled family")
	}
}

func TestMetricValue_CollectorGauge(t *testing.T) {
	_, registry := newTestCollector(CollectorConfig{
		TargetUnits: 12,
		Workload:    "/tmp/work/hackbench/hackbench 20",
		Archive:     "hackbench.tar.gz",
	})

	got, found := MetricValue(registry, "hackbench_load_target_units", nil)
	if !found {
		t.Fatal("MetricValue(hackbench_load_target_units) not found")
	}
	if got != 12 {
		t.Errorf("hackbench_load_target_units = %v, want 12", got)
	}
}

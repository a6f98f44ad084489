package metrics

import (
	"bytes"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// WriteSnapshot renders every metric family in the gatherer in the
// Prometheus text exposition format.
func WriteSnapshot(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Snapshot returns the text exposition of the gatherer's metrics.
// Used by --metrics-dump to emit final metric values on exit.
func Snapshot(g prometheus.Gatherer) (string, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, g); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MetricValue looks up the current value of a single counter, gauge, or
// untyped metric. The labels map is matched as a subset of the metric's
// label pairs; pass nil to match the first metric in the family.
func MetricValue(g prometheus.Gatherer, name string, labels map[string]string) (float64, bool) {
	families, err := g.Gather()
	if err != nil {
		return 0, false
	}

	var family *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == name {
			family = mf
			break
		}
	}
	if family == nil {
		return 0, false
	}

	for _, metric := range family.GetMetric() {
		if !labelsMatch(metric, labels) {
			continue
		}
		switch {
		case metric.GetCounter() != nil:
			return metric.GetCounter().GetValue(), true
		case metric.GetGauge() != nil:
			return metric.GetGauge().GetValue(), true
		case metric.GetUntyped() != nil:
			return metric.GetUntyped().GetValue(), true
		}
	}
	return 0, false
}

// labelsMatch reports whether the metric carries every requested label
// with the requested value.
func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(labels) == 0 {
		return true
	}

	have := make(map[string]string, len(metric.GetLabel()))
	for _, label := range metric.GetLabel() {
		have[label.GetName()] = label.GetValue()
	}

	for name, value := range labels {
		if have[name] != value {
			return false
		}
	}
	return true
}

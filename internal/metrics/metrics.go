// Package metrics counts stream activity with prometheus counters.
//
// [Streams] implements stream.Observer; pass it as Options.Observer and read
// the totals back with [Write] or any prometheus exporter.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/calvinalkan/fstream/internal/stream"
)

const namespace = "fstream"

// Streams holds the counters for one registry.
type Streams struct {
	bytes  *prometheus.CounterVec
	errors *prometheus.CounterVec
	closes *prometheus.CounterVec
}

// New creates the stream counters and registers them with reg.
func New(reg prometheus.Registerer) (*Streams, error) {
	s := &Streams{
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes moved through streams, by component and operation.",
		}, []string{"component", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed stream operations, by component and operation.",
		}, []string{"component", "op"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_total",
			Help:      "Stream handles released, by component.",
		}, []string{"component"}),
	}

	for _, c := range []prometheus.Collector{s.bytes, s.errors, s.closes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return s, nil
}

var _ stream.Observer = (*Streams)(nil)

func (s *Streams) ObserveBytes(component, op string, n int) {
	s.bytes.WithLabelValues(component, op).Add(float64(n))
}

func (s *Streams) ObserveError(component, op string) {
	s.errors.WithLabelValues(component, op).Inc()
}

func (s *Streams) ObserveClose(component string) {
	s.closes.WithLabelValues(component).Inc()
}

// BytesCounter returns the byte counter for one component and operation.
func (s *Streams) BytesCounter(component, op string) prometheus.Counter {
	return s.bytes.WithLabelValues(component, op)
}

// ClosesCounter returns the close counter for one component.
func (s *Streams) ClosesCounter(component string) prometheus.Counter {
	return s.closes.WithLabelValues(component)
}

// Write prints every counter gathered from g as one
// `name{label="value",...} value` line, sorted by name and labels.
// Families without samples are skipped.
func Write(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), formatLabels(m.GetLabel()), sampleValue(mf.GetType(), m)))
		}
	}

	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}

	return "{" + strings.Join(parts, ",") + "}"
}

func sampleValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}

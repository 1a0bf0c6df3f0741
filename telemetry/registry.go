package telemetry

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricKind identifies the type of a registered metric.
type MetricKind uint8

const (
	// KindCounter is a monotonically increasing value.
	KindCounter MetricKind = iota

	// KindGauge is a value that can go up and down.
	KindGauge

	// KindHistogram records a distribution of observations.
	KindHistogram
)

// String returns the string representation of MetricKind.
func (k MetricKind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// pathLabel is the constant label carrying the registering context's path.
const pathLabel = "path"

// Registry is the process-wide metric registry. Metrics are keyed by the
// label path of the runtime context that registered them plus a metric name,
// so two contexts with different paths never collide even when they pick the
// same metric name.
//
// Registration is additive and idempotent: registering the same
// (path, name, kind) twice returns the same collector; re-registering an
// existing (path, name) under a different kind is an error, never a merge.
//
// Prometheus requires collectors sharing a metric name to agree on help text
// and label names, so the help string never embeds the path; the path const
// label alone distinguishes instances.
type Registry struct {
	mu sync.Mutex

	prom *prometheus.Registry

	kinds      map[string]MetricKind
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{
		prom:       prometheus.NewRegistry(),
		kinds:      make(map[string]MetricKind),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// metricKey builds the flat registry key for a path/name pair.
func metricKey(path, name string) string {
	return path + "/" + name
}

// sanitizeName maps a metric name onto the prometheus name charset.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Counter registers (or returns the previously registered) counter for the
// given path and name.
func (r *Registry) Counter(path, name string) (prometheus.Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(path, name)
	if kind, exists := r.kinds[key]; exists {
		if kind != KindCounter {
			return nil, fmt.Errorf("metric %q already registered as %s", key, kind)
		}
		return r.counters[key], nil
	}

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "kestrel",
		Name:        sanitizeName(name),
		Help:        fmt.Sprintf("Counter %s.", name),
		ConstLabels: prometheus.Labels{pathLabel: path},
	})
	if err := r.prom.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register counter %q: %w", key, err)
	}

	r.kinds[key] = KindCounter
	r.counters[key] = c
	return c, nil
}

// Gauge registers (or returns the previously registered) gauge for the given
// path and name.
func (r *Registry) Gauge(path, name string) (prometheus.Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(path, name)
	if kind, exists := r.kinds[key]; exists {
		if kind != KindGauge {
			return nil, fmt.Errorf("metric %q already registered as %s", key, kind)
		}
		return r.gauges[key], nil
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "kestrel",
		Name:        sanitizeName(name),
		Help:        fmt.Sprintf("Gauge %s.", name),
		ConstLabels: prometheus.Labels{pathLabel: path},
	})
	if err := r.prom.Register(g); err != nil {
		return nil, fmt.Errorf("failed to register gauge %q: %w", key, err)
	}

	r.kinds[key] = KindGauge
	r.gauges[key] = g
	return g, nil
}

// Histogram registers (or returns the previously registered) histogram for
// the given path and name, using the default bucket layout.
func (r *Registry) Histogram(path, name string) (prometheus.Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(path, name)
	if kind, exists := r.kinds[key]; exists {
		if kind != KindHistogram {
			return nil, fmt.Errorf("metric %q already registered as %s", key, kind)
		}
		return r.histograms[key], nil
	}

	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "kestrel",
		Name:        sanitizeName(name),
		Help:        fmt.Sprintf("Histogram %s.", name),
		ConstLabels: prometheus.Labels{pathLabel: path},
		Buckets:     prometheus.DefBuckets,
	})
	if err := r.prom.Register(h); err != nil {
		return nil, fmt.Errorf("failed to register histogram %q: %w", key, err)
	}

	r.kinds[key] = KindHistogram
	r.histograms[key] = h
	return h, nil
}

// Snapshot returns the current value of every registered metric as a flat
// mapping from "path/name" to value. Histograms contribute two entries,
// "path/name_count" and "path/name_sum". This is the read surface consumed
// by external telemetry exporters.
func (r *Registry) Snapshot() (map[string]float64, error) {
	families, err := r.prom.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, family := range families {
		name := strings.TrimPrefix(family.GetName(), "kestrel_")
		for _, m := range family.GetMetric() {
			var path string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == pathLabel {
					path = lp.GetValue()
				}
			}

			switch {
			case m.GetCounter() != nil:
				out[metricKey(path, name)] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[metricKey(path, name)] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				out[metricKey(path, name+"_count")] = float64(h.GetSampleCount())
				out[metricKey(path, name+"_sum")] = h.GetSampleSum()
			}
		}
	}
	return out, nil
}

// Handler returns an HTTP handler exposing the registry in the prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

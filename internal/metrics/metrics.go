// Package metrics provides Prometheus-compatible metrics for the vnime hosts.
//
// Metrics live in a Registry and are written in the Prometheus text
// exposition format, either to any io.Writer or atomically to a file that a
// node_exporter textfile collector can pick up. Nothing here listens on the
// network.
package metrics

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "untyped"
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current value.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	buckets []float64 // upper bounds, ascending

	mu     sync.Mutex
	counts []uint64 // per bucket, plus +Inf
	sum    float64
	count  uint64
}

// KeyLatencyBuckets are buckets in seconds for per-key handling time.
// Composition is expected to stay well under a millisecond.
var KeyLatencyBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.buckets, v)
	h.mu.Lock()
	h.counts[i]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) {
	h.ObserveDuration(time.Since(start))
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum returns the sum of observed values.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Quantile estimates the q-th quantile (0..1) from the bucket counts.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	counts := append([]uint64(nil), h.counts...)
	h.mu.Unlock()
	return Percentile(h.buckets, counts, q)
}

// Percentile estimates the p-th quantile (0..1) from bucket upper bounds and
// per-bucket counts, interpolating linearly inside the bucket. counts has one
// more entry than buckets for the +Inf bucket.
func Percentile(buckets []float64, counts []uint64, p float64) float64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 || len(buckets) == 0 {
		return math.NaN()
	}
	rank := p * float64(total)
	var seen uint64
	for i, c := range counts {
		if float64(seen+c) < rank || c == 0 {
			seen += c
			continue
		}
		if i >= len(buckets) {
			return buckets[len(buckets)-1]
		}
		lower := 0.0
		if i > 0 {
			lower = buckets[i-1]
		}
		frac := (rank - float64(seen)) / float64(c)
		return lower + (buckets[i]-lower)*frac
	}
	return buckets[len(buckets)-1]
}

// Registry holds registered metrics in registration order.
type Registry struct {
	namespace string

	mu         sync.RWMutex
	order      []string
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates a registry that prefixes every metric with namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:  namespace,
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

// Counter returns the counter called name, registering it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	name = r.fullName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help}
	r.counters[name] = c
	r.order = append(r.order, name)
	return c
}

// Gauge returns the gauge called name, registering it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	name = r.fullName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	r.order = append(r.order, name)
	return g
}

// Histogram returns the histogram called name, registering it with buckets
// on first use.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	name = r.fullName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	h := &Histogram{name: name, help: help, buckets: b, counts: make([]uint64, len(b)+1)}
	r.histograms[name] = h
	r.order = append(r.order, name)
	return h
}

// WritePrometheus writes every metric in the Prometheus text format.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range r.order {
		switch {
		case r.counters[name] != nil:
			c := r.counters[name]
			header(&b, name, c.help, TypeCounter)
			fmt.Fprintf(&b, "%s %d\n", name, c.Value())
		case r.gauges[name] != nil:
			g := r.gauges[name]
			header(&b, name, g.help, TypeGauge)
			fmt.Fprintf(&b, "%s %d\n", name, g.Value())
		case r.histograms[name] != nil:
			h := r.histograms[name]
			header(&b, name, h.help, TypeHistogram)
			h.mu.Lock()
			var cum uint64
			for i, le := range h.buckets {
				cum += h.counts[i]
				fmt.Fprintf(&b, "%s_bucket{le=\"%g\"} %d\n", name, le, cum)
			}
			fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
			fmt.Fprintf(&b, "%s_sum %g\n", name, h.sum)
			fmt.Fprintf(&b, "%s_count %d\n", name, h.count)
			h.mu.Unlock()
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func header(b *strings.Builder, name, help string, t MetricType) {
	if help != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", name, t)
}

// WriteFile writes the registry to path through a temporary file so readers
// never see a partial file.
func (r *Registry) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metrics-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := r.WritePrometheus(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

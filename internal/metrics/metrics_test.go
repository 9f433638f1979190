package metrics

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("vnime")
	a := r.Counter("keys_total", "keys")
	b := r.Counter("keys_total", "ignored")
	if a != b {
		t.Fatal("expected the registered counter to be reused")
	}
	a.Add(3)
	b.Inc()
	if got := a.Value(); got != 4 {
		t.Errorf("counter = %d, want 4", got)
	}
}

func TestGauge(t *testing.T) {
	g := NewRegistry("").Gauge("open", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Errorf("gauge = %d, want 1", g.Value())
	}
	g.Set(7)
	if g.Value() != 7 {
		t.Errorf("gauge = %d, want 7", g.Value())
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewHostMetrics(nil)
	m.Keys.Add(10)
	m.ContextsOpen.Set(2)
	m.KeyLatency.ObserveDuration(20 * time.Microsecond)
	m.KeyLatency.ObserveDuration(time.Second)

	var buf bytes.Buffer
	if err := m.Registry().WritePrometheus(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE vnime_keys_total counter\nvnime_keys_total 10\n",
		"# TYPE vnime_contexts_open gauge\nvnime_contexts_open 2\n",
		"# TYPE vnime_key_duration_seconds histogram\n",
		`vnime_key_duration_seconds_bucket{le="2.5e-05"} 1`,
		`vnime_key_duration_seconds_bucket{le="0.01"} 1`,
		`vnime_key_duration_seconds_bucket{le="+Inf"} 2`,
		"vnime_key_duration_seconds_count 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	// Registration order is preserved.
	if strings.Index(out, "vnime_keys_total") > strings.Index(out, "vnime_commits_total") {
		t.Error("metrics written out of registration order")
	}
}

func TestWriteFile(t *testing.T) {
	r := NewRegistry("vnime")
	r.Counter("commits_total", "").Inc()
	path := filepath.Join(t.TempDir(), "sub", "vnime.prom")

	if err := r.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "vnime_commits_total 1") {
		t.Errorf("unexpected file content:\n%s", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestPercentile(t *testing.T) {
	buckets := []float64{1, 2, 4}
	counts := []uint64{0, 10, 0, 0}
	if got := Percentile(buckets, counts, 0.5); got != 1.5 {
		t.Errorf("p50 = %v, want 1.5", got)
	}
	if got := Percentile(buckets, []uint64{0, 0, 0, 5}, 0.99); got != 4 {
		t.Errorf("p99 in +Inf = %v, want 4", got)
	}
	if got := Percentile(buckets, []uint64{0, 0, 0, 0}, 0.5); !math.IsNaN(got) {
		t.Errorf("empty histogram = %v, want NaN", got)
	}
}

func TestHistogramConcurrent(t *testing.T) {
	h := NewRegistry("").Histogram("lat", "", KeyLatencyBuckets)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				h.Observe(0.0001)
			}
		}()
	}
	wg.Wait()
	if h.Count() != 8000 {
		t.Errorf("count = %d, want 8000", h.Count())
	}
	if q := h.Quantile(0.5); q <= 0.00005 || q > 0.0001 {
		t.Errorf("median = %v, want within (5e-05, 1e-04]", q)
	}
}

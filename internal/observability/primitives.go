package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// family is one metric name with its labelled values, rendered in the
// Prometheus text exposition format.
type family struct {
	name   string
	help   string
	kind   string
	labels []string

	mu     sync.Mutex
	values map[string]float64
}

func newFamily(name, help, kind string, labels []string) family {
	return family{name: name, help: help, kind: kind, labels: labels, values: map[string]float64{}}
}

func (f *family) update(fn func(float64) float64, labelValues []string) {
	key := labelString(f.labels, labelValues)
	f.mu.Lock()
	f.values[key] = fn(f.values[key])
	f.mu.Unlock()
}

func (f *family) writeHeader(w io.Writer) error {
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	return err
}

func (f *family) write(w io.Writer) error {
	if err := f.writeHeader(w); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range sortedKeys(f.values) {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", f.name, key, f.values[key]); err != nil {
			return err
		}
	}
	return nil
}

type CounterVec struct{ f family }

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{f: newFamily(name, help, "counter", labels)}
}

func (c *CounterVec) Inc(labelValues ...string) { c.Add(1, labelValues...) }

func (c *CounterVec) Add(v float64, labelValues ...string) {
	if c == nil || v < 0 {
		return
	}
	c.f.update(func(cur float64) float64 { return cur + v }, labelValues)
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.f.write(w)
}

// Counter is an unlabelled CounterVec.
type Counter struct{ vec CounterVec }

func NewCounter(name, help string) *Counter {
	return &Counter{vec: CounterVec{f: newFamily(name, help, "counter", nil)}}
}

func (c *Counter) Inc() {
	if c != nil {
		c.vec.Inc()
	}
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	return c.vec.WritePrometheus(w)
}

type Gauge struct{ f family }

func NewGauge(name, help string) *Gauge {
	return &Gauge{f: newFamily(name, help, "gauge", nil)}
}

func (g *Gauge) Set(v float64) {
	if g != nil {
		g.f.update(func(float64) float64 { return v }, nil)
	}
}

func (g *Gauge) Inc() {
	if g != nil {
		g.f.update(func(cur float64) float64 { return cur + 1 }, nil)
	}
}

func (g *Gauge) Dec() {
	if g != nil {
		g.f.update(func(cur float64) float64 { return cur - 1 }, nil)
	}
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	return g.f.write(w)
}

var defaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type HistogramVec struct {
	name    string
	help    string
	labels  []string
	bounds  []float64
	mu      sync.Mutex
	byLabel map[string]*histogram
}

// histogram keeps cumulative counts; counts[len(bounds)] is the +Inf bucket.
type histogram struct {
	counts []uint64
	sum    float64
}

func NewHistogramVec(name, help string, labels []string, bounds []float64) *HistogramVec {
	if len(bounds) == 0 {
		bounds = defaultLatencyBuckets
	}
	return &HistogramVec{name: name, help: help, labels: labels, bounds: bounds, byLabel: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, labelValues ...string) {
	if h == nil {
		return
	}
	key := labelString(h.labels, labelValues)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist := h.byLabel[key]
	if hist == nil {
		hist = &histogram{counts: make([]uint64, len(h.bounds)+1)}
		h.byLabel[key] = hist
	}
	hist.sum += v
	for i, bound := range h.bounds {
		if v <= bound {
			hist.counts[i]++
		}
	}
	hist.counts[len(h.bounds)]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	head := family{name: h.name, help: h.help, kind: "histogram"}
	if err := head.writeHeader(w); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range sortedKeys(h.byLabel) {
		hist := h.byLabel[key]
		for i, bound := range h.bounds {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(key, fmt.Sprintf("%g", bound)), hist.counts[i]); err != nil {
				return err
			}
		}
		total := hist.counts[len(h.bounds)]
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n%s_sum%s %f\n%s_count%s %d\n",
			h.name, withLe(key, "+Inf"), total,
			h.name, key, hist.sum,
			h.name, key, total); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// labelString renders {name="value",...}; missing values read "unknown".
func labelString(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	pairs := make([]string, len(names))
	for i, name := range names {
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		pairs[i] = name + `="` + labelEscaper.Replace(val) + `"`
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func withLe(labels, le string) string {
	pair := `le="` + labelEscaper.Replace(le) + `"`
	if labels == "" {
		return "{" + pair + "}"
	}
	return strings.TrimSuffix(labels, "}") + "," + pair + "}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	return len(status) == 3 && status[0] == '5'
}

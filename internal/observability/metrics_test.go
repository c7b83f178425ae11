package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveGeneration("Research", "openai", "ok", time.Second, 1, 2)
	m.SetOpenWorkflows(3)
	if NewMetrics(MetricsConfig{}) != nil {
		t.Fatalf("disabled metrics should be nil")
	}
}

func TestWritePrometheus(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.ObserveAPI("POST", "/api/posts/:id/development/generate", "502", 120*time.Millisecond)
	m.ObserveGeneration("Ideation", "anthropic", "ok", 3*time.Second, 100, 40)
	m.SetOpenWorkflows(2)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`arcblog_api_requests_total{method="POST",route="/api/posts/:id/development/generate",status="502"} 1.000000`,
		`arcblog_api_requests_error_total 1.000000`,
		`arcblog_generations_total{stage="ideation",provider="anthropic",status="ok"} 1.000000`,
		`arcblog_llm_tokens_total{provider="anthropic",direction="input"} 100.000000`,
		`arcblog_generation_duration_seconds_bucket{stage="ideation",provider="anthropic",status="ok",le="5"} 1`,
		`arcblog_open_workflows 2.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves /metrics on its own listener when set; otherwise the API
	// router exposes it.
	Addr string `yaml:"addr"`
}

// Metrics is the process-wide set of counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	apiReqError   *Counter
	generations   *CounterVec
	genLatency    *HistogramVec
	llmTokens     *CounterVec
	openWorkflows *Gauge
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{
		apiRequests: NewCounterVec("arcblog_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"arcblog_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("arcblog_api_inflight_requests", "In-flight API requests."),
		apiReqError: NewCounter("arcblog_api_requests_error_total", "Total API requests with 5xx status."),
		generations: NewCounterVec("arcblog_generations_total", "Stage generations by stage/provider/status.", []string{"stage", "provider", "status"}),
		genLatency: NewHistogramVec(
			"arcblog_generation_duration_seconds",
			"Stage generation latency in seconds by stage/provider/status.",
			[]string{"stage", "provider", "status"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		),
		llmTokens:     NewCounterVec("arcblog_llm_tokens_total", "Provider tokens by provider/direction.", []string{"provider", "direction"}),
		openWorkflows: NewGauge("arcblog_open_workflows", "Open development workflows."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqError,
		m.generations,
		m.genLatency,
		m.llmTokens,
		m.openWorkflows,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveGeneration records one stage generation. status is "ok", "degraded"
// or "error".
func (m *Metrics) ObserveGeneration(stage, provider, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	stage = strings.ToLower(strings.TrimSpace(stage))
	if stage == "" {
		stage = "unknown"
	}
	if strings.TrimSpace(provider) == "" {
		provider = "none"
	}
	m.generations.Inc(stage, provider, status)
	if dur > 0 {
		m.genLatency.Observe(dur.Seconds(), stage, provider, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), provider, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), provider, "output")
	}
}

func (m *Metrics) SetOpenWorkflows(n int) {
	if m == nil {
		return
	}
	m.openWorkflows.Set(float64(n))
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

func newTestFactory(t *testing.T, srv *httptest.Server, retries int) *Factory {
	t.Helper()
	base := map[string]string{}
	for _, k := range KnownKeys() {
		base[k] = srv.URL
	}
	return NewFactory(logger.Nop(), FactoryConfig{BaseURLs: base, MaxRetries: retries, HTTPTimeout: 5 * time.Second})
}

func mustProvider(t *testing.T, f *Factory, key string) Provider {
	t.Helper()
	p, err := f.New(Credential{Provider: key, APIKey: "k-test"})
	if err != nil {
		t.Fatalf("New(%s): %v", key, err)
	}
	return p
}

func TestChatCompletionsNormalizesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k-test" {
			t.Errorf("auth header=%q", got)
		}
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"RESEARCH AREAS:\n- one"}}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeyOpenAI)
	out, err := p.Generate(context.Background(), "hello", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != "RESEARCH AREAS:\n- one" {
		t.Fatalf("text=%q", out.Text)
	}
	if out.Usage == nil || out.Usage.TotalTokens != 7 {
		t.Fatalf("usage=%+v", out.Usage)
	}
	if p.Searches() {
		t.Fatalf("openai should not be a search backend")
	}
}

func TestChatCompletionsRetriesWithoutTemperature(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if n == 1 {
			if _, ok := req["temperature"]; !ok {
				t.Errorf("first call should carry temperature")
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`)
			return
		}
		if _, ok := req["temperature"]; ok {
			t.Errorf("second call should drop temperature")
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeyOpenAI)
	out, err := p.Generate(context.Background(), "hi", Options{Temperature: Temperature(0.7)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("text=%q calls=%d", out.Text, calls)
	}
}

func TestPerplexityAppendsCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Findings."}}],"citations":["https://a.example","https://b.example"]}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeyPerplexity)
	if !p.Searches() {
		t.Fatalf("perplexity should be a search backend")
	}
	out, err := p.Generate(context.Background(), "q", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "Findings.\n\nSources:\n[1] https://a.example\n[2] https://b.example"
	if out.Text != want {
		t.Fatalf("text=%q want %q", out.Text, want)
	}
}

func TestAnthropicJoinsTextBlocksAndReportsErrors(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k-test" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic headers")
		}
		if fail.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"type":"message","content":[{"type":"text","text":"a"},{"type":"tool_use"},{"type":"text","text":"b"}],"usage":{"input_tokens":2,"output_tokens":5}}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeyAnthropic)
	out, err := p.Generate(context.Background(), "hi", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != "a\nb" || out.Usage.TotalTokens != 7 {
		t.Fatalf("out=%+v", out)
	}

	fail.Store(true)
	_, err = p.Generate(context.Background(), "hi", Options{})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T %v", err, err)
	}
	if pe.Status != http.StatusUnauthorized || pe.Message != "invalid x-api-key" || pe.Provider != KeyAnthropic {
		t.Fatalf("pe=%+v", pe)
	}
}

func TestSerperFlattensResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Header.Get("X-API-KEY") != "k-test" {
			t.Errorf("path=%s key=%q", r.URL.Path, r.Header.Get("X-API-KEY"))
		}
		var req serperRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Q != "go generics" || req.Num != serperDefaultResults {
			t.Errorf("req=%+v", req)
		}
		_, _ = io.WriteString(w, `{"organic":[{"title":"T1","link":"https://one","snippet":"S1","date":"2024"},{"title":"T2","link":"https://two","snippet":"S2"}]}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeySerper)
	out, err := p.Generate(context.Background(), "  go generics ", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	blocks := strings.Split(out.Text, "\n---\n")
	if len(blocks) != 2 {
		t.Fatalf("blocks=%d text=%q", len(blocks), out.Text)
	}
	if blocks[0] != "Title: T1\nLink: https://one\nDate: 2024\nSnippet: S1" {
		t.Fatalf("block0=%q", blocks[0])
	}
	if got := flattenSerper(serperResponse{}); got != "No results found." {
		t.Fatalf("empty=%q", got)
	}
}

func TestTransportRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"second time"}}]}`)
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 2), KeyGrok)
	out, err := p.Generate(context.Background(), "hi", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Text != "second time" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("text=%q calls=%d", out.Text, calls)
	}
}

func TestTransportMapsDeadlineToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := mustProvider(t, newTestFactory(t, srv, 0), KeyOpenAI)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Generate(ctx, "hi", Options{})
	if !errors.Is(err, ErrProviderTimeout) {
		t.Fatalf("expected ErrProviderTimeout, got %v", err)
	}
	if !IsProviderError(err) {
		t.Fatalf("timeout should be a ProviderError")
	}
}

func TestFactoryRejectsUnknownAndKeyless(t *testing.T) {
	f := NewFactory(logger.Nop(), FactoryConfig{})
	if _, err := f.New(Credential{Provider: "nope", APIKey: "x"}); !errors.Is(err, ErrInvalidProviderKey) {
		t.Fatalf("unknown provider err=%v", err)
	}
	if _, err := f.New(Credential{Provider: KeyOpenAI}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	reg := f.BuildRegistry([]Credential{
		{Provider: KeyOpenAI, APIKey: "a"},
		{Provider: "nope", APIKey: "b"},
		{Provider: KeySerper, APIKey: "c"},
	})
	if got := reg.ListAvailable(); len(got) != 2 || got[0] != KeyOpenAI || got[1] != KeySerper {
		t.Fatalf("available=%v", got)
	}
}

func TestErrorMessageFromBody(t *testing.T) {
	cases := map[string]string{
		`{"error":{"message":"bad key"}}`: "bad key",
		`{"error":"rate limited"}`:        "rate limited",
		`{"message":"quota"}`:             "quota",
		`not json`:                        "not json",
	}
	for in, want := range cases {
		if got := errorMessageFromBody([]byte(in)); got != want {
			t.Fatalf("errorMessageFromBody(%q)=%q want %q", in, got, want)
		}
	}
}

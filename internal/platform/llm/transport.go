package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/arcblog-backend/internal/platform/httpx"
	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/arcblog-backend/internal/platform/llm"

// transport is the shared JSON-over-HTTP plumbing of every adapter.
type transport struct {
	log        *logger.Logger
	provider   string
	httpClient *http.Client
	maxRetries int
}

func (t *transport) doOnce(ctx context.Context, url string, headers map[string]string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// postJSON sends body and returns the raw 2xx payload. Every failure comes
// back as *ProviderError.
func (t *transport) postJSON(ctx context.Context, url string, headers map[string]string, body any, model string) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", t.provider),
		attribute.String("llm.model", model),
	)

	raw, err := t.postWithRetry(ctx, url, headers, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return raw, nil
}

func (t *transport) postWithRetry(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	backoff := 1 * time.Second
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, t.wrap(ctx, ctx.Err())
		}
		resp, raw, err := t.doOnce(ctx, url, headers, body)
		if err == nil {
			return raw, nil
		}
		if !httpx.IsRetryableError(err) || attempt >= t.maxRetries {
			return nil, t.wrap(ctx, err)
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		t.log.Warn("Provider request retrying",
			"provider", t.provider,
			"attempt", attempt+1,
			"max_retries", t.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return nil, t.wrap(ctx, err)
		}
		backoff *= 2
	}
}

func (t *transport) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ProviderError{Provider: t.provider, Message: "request timed out", Err: ErrProviderTimeout}
	}
	var se *httpx.StatusError
	if errors.As(err, &se) {
		msg := errorMessageFromBody([]byte(se.Body))
		if msg == "" {
			msg = http.StatusText(se.StatusCode)
		}
		return &ProviderError{Provider: t.provider, Status: se.StatusCode, Message: msg, Err: err}
	}
	return &ProviderError{Provider: t.provider, Message: err.Error(), Err: err}
}

func (t *transport) decode(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Provider: t.provider, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

func (t *transport) payloadError(msg string) error {
	return &ProviderError{Provider: t.provider, Message: strings.TrimSpace(msg)}
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 2048
)

type anthropic struct {
	transport
	baseURL string
	apiKey  string
	model   string
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *anthropic) Key() string    { return KeyAnthropic }
func (a *anthropic) Searches() bool { return false }

func (a *anthropic) Generate(ctx context.Context, prompt string, opts Options) (GeneratedText, error) {
	if strings.TrimSpace(prompt) == "" {
		return GeneratedText{}, a.payloadError("prompt required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	req := anthropicRequest{
		Model:       firstNonEmpty(opts.Model, a.model),
		MaxTokens:   maxTokens,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	raw, err := a.postJSON(ctx, joinURL(a.baseURL, "/v1/messages"), headers, req, req.Model)
	if err != nil {
		return GeneratedText{}, err
	}
	var resp anthropicResponse
	if err := a.decode(raw, &resp); err != nil {
		return GeneratedText{}, err
	}
	out, err := normalizeAnthropic(resp)
	if err != nil {
		return GeneratedText{}, a.payloadError(err.Error())
	}
	return out, nil
}

func normalizeAnthropic(resp anthropicResponse) (GeneratedText, error) {
	if resp.Error != nil || resp.Type == "error" {
		msg := "unknown error"
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return GeneratedText{}, fmt.Errorf("%s", msg)
	}
	parts := make([]string, 0, len(resp.Content))
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c.Text)
		}
	}
	if len(parts) == 0 {
		return GeneratedText{}, fmt.Errorf("response has no text")
	}
	out := GeneratedText{Text: strings.Join(parts, "\n")}
	if resp.Usage != nil {
		out.Usage = &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	return out, nil
}

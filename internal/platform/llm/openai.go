package llm

import (
	"context"
	"fmt"
	"strings"
)

// chatCompletions serves every backend speaking the OpenAI chat-completions
// dialect: OpenAI itself, Grok, and Perplexity.
type chatCompletions struct {
	transport
	key       string
	baseURL   string
	path      string
	apiKey    string
	model     string
	searches  bool
	normalize func(chatResponse) (GeneratedText, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Citations []string `json:"citations"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *chatCompletions) Key() string    { return c.key }
func (c *chatCompletions) Searches() bool { return c.searches }

func (c *chatCompletions) Generate(ctx context.Context, prompt string, opts Options) (GeneratedText, error) {
	if strings.TrimSpace(prompt) == "" {
		return GeneratedText{}, c.payloadError("prompt required")
	}
	req := chatRequest{
		Model:       firstNonEmpty(opts.Model, c.model),
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	raw, err := c.send(ctx, &req)
	if err != nil {
		return GeneratedText{}, err
	}
	var resp chatResponse
	if err := c.decode(raw, &resp); err != nil {
		return GeneratedText{}, err
	}
	if resp.Error != nil && strings.TrimSpace(resp.Error.Message) != "" {
		return GeneratedText{}, c.payloadError(resp.Error.Message)
	}
	out, err := c.normalize(resp)
	if err != nil {
		return GeneratedText{}, c.payloadError(err.Error())
	}
	return out, nil
}

// send retries exactly once without temperature if the model rejects it.
func (c *chatCompletions) send(ctx context.Context, req *chatRequest) ([]byte, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	url := joinURL(c.baseURL, c.path)
	raw, err := c.postJSON(ctx, url, headers, req, req.Model)
	if err == nil || req.Temperature == nil || !isUnsupportedTemperatureMessage(err.Error()) {
		return raw, err
	}
	c.log.Info("Model rejected temperature; retrying without it", "provider", c.key, "model", req.Model)
	req.Temperature = nil
	return c.postJSON(ctx, url, headers, req, req.Model)
}

func normalizeChatCompletion(resp chatResponse) (GeneratedText, error) {
	if len(resp.Choices) == 0 {
		return GeneratedText{}, fmt.Errorf("response has no choices")
	}
	choice := resp.Choices[0]
	if r := strings.TrimSpace(choice.Message.Refusal); r != "" {
		return GeneratedText{}, fmt.Errorf("model refused: %s", r)
	}
	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		text = choice.Text
	}
	if strings.TrimSpace(text) == "" {
		return GeneratedText{}, fmt.Errorf("response has no text")
	}
	out := GeneratedText{Text: text}
	if resp.Usage != nil {
		out.Usage = &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// normalizePerplexity appends the citation list so the prose keeps its sources.
func normalizePerplexity(resp chatResponse) (GeneratedText, error) {
	out, err := normalizeChatCompletion(resp)
	if err != nil {
		return out, err
	}
	if len(resp.Citations) == 0 {
		return out, nil
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(out.Text, "\n"))
	b.WriteString("\n\nSources:\n")
	for i, c := range resp.Citations {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(c))
	}
	out.Text = strings.TrimRight(b.String(), "\n")
	return out, nil
}

func isUnsupportedTemperatureMessage(s string) bool {
	msg := strings.ToLower(strings.TrimSpace(s))
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, frag := range []string{"unsupported parameter", "unknown parameter", "unrecognized parameter", "not supported", "does not support", "only the default", "unsupported_value"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Package llm puts every text-generation and search backend behind one
// Generate capability and keeps a per-session registry of configured
// backends.
package llm

import (
	"context"
	"strings"
)

const (
	KeyOpenAI     = "openai"
	KeyAnthropic  = "anthropic"
	KeyGrok       = "grok"
	KeyPerplexity = "perplexity"
	KeySerper     = "serper"
)

// KnownKeys lists the supported backends in a stable order.
func KnownKeys() []string {
	return []string{KeyOpenAI, KeyAnthropic, KeyGrok, KeyPerplexity, KeySerper}
}

func IsKnownKey(key string) bool {
	key = NormalizeKey(key)
	for _, k := range KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Options are per-call generation knobs. Zero values mean "backend default".
type Options struct {
	Temperature *float64
	MaxTokens   int
	Model       string
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// GeneratedText is the normalized result of every backend.
type GeneratedText struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

type Provider interface {
	Key() string
	// Searches reports whether the backend is a search/fact-finding backend
	// whose output should be kept whole rather than split into categories.
	Searches() bool
	Generate(ctx context.Context, prompt string, opts Options) (GeneratedText, error)
}

func Temperature(v float64) *float64 { return &v }

package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/arcblog-backend/internal/platform/logger"
)

// Credential is what a user stored for one backend. The api key is opaque.
type Credential struct {
	Provider string
	APIKey   string
	Model    string
}

type FactoryConfig struct {
	// BaseURLs overrides the public endpoint per provider key (tests, proxies).
	BaseURLs   map[string]string
	MaxRetries int
	// HTTPTimeout bounds a single attempt; the caller's context bounds the whole call.
	HTTPTimeout time.Duration
}

type Factory struct {
	log        *logger.Logger
	cfg        FactoryConfig
	httpClient *http.Client
}

func NewFactory(log *logger.Logger, cfg FactoryConfig) *Factory {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Factory{
		log:        log.With("service", "ProviderFactory"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

var defaultBaseURLs = map[string]string{
	KeyOpenAI:     "https://api.openai.com",
	KeyAnthropic:  "https://api.anthropic.com",
	KeyGrok:       "https://api.x.ai",
	KeyPerplexity: "https://api.perplexity.ai",
	KeySerper:     "https://google.serper.dev",
}

var defaultModels = map[string]string{
	KeyOpenAI:     "gpt-4o-mini",
	KeyAnthropic:  "claude-3-5-sonnet-latest",
	KeyGrok:       "grok-2-latest",
	KeyPerplexity: "sonar",
}

func (f *Factory) baseURL(key string) string {
	if u := strings.TrimSpace(f.cfg.BaseURLs[key]); u != "" {
		return u
	}
	return defaultBaseURLs[key]
}

// New builds the adapter for one credential.
func (f *Factory) New(c Credential) (Provider, error) {
	key := NormalizeKey(c.Provider)
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("%s: missing api key", key)
	}
	t := transport{
		log:        f.log.With("provider", key),
		provider:   key,
		httpClient: f.httpClient,
		maxRetries: f.cfg.MaxRetries,
	}
	model := firstNonEmpty(c.Model, defaultModels[key])

	switch key {
	case KeyOpenAI, KeyGrok:
		return &chatCompletions{
			transport: t,
			key:       key,
			baseURL:   f.baseURL(key),
			path:      "/v1/chat/completions",
			apiKey:    c.APIKey,
			model:     model,
			normalize: normalizeChatCompletion,
		}, nil
	case KeyPerplexity:
		return &chatCompletions{
			transport: t,
			key:       key,
			baseURL:   f.baseURL(key),
			path:      "/chat/completions",
			apiKey:    c.APIKey,
			model:     model,
			searches:  true,
			normalize: normalizePerplexity,
		}, nil
	case KeyAnthropic:
		return &anthropic{transport: t, baseURL: f.baseURL(key), apiKey: c.APIKey, model: model}, nil
	case KeySerper:
		return &serper{transport: t, baseURL: f.baseURL(key), apiKey: c.APIKey}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProviderKey, c.Provider)
	}
}

// BuildRegistry registers every usable credential in the given order.
// Unusable ones are logged and skipped.
func (f *Factory) BuildRegistry(creds []Credential) *Registry {
	reg := NewRegistry()
	for _, c := range creds {
		p, err := f.New(c)
		if err != nil {
			f.log.Warn("Skipping provider credential", "provider", c.Provider, "error", err)
			continue
		}
		reg.Register(p.Key(), p)
	}
	return reg
}

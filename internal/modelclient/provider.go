package modelclient

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultChatModel     = "qwen3:4b"
	defaultText2SQLModel = "sqlcoder7b"
)

type Settings struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	ChatModel      string
	Text2SQLModel  string
	RouterModel    string
	OllamaEndpoint string
	Temperature    float64
	Retry          RetryPolicy
}

// ModelName resolves the configured model for a purpose, falling back to the shared model name
// and then the built-in default.
func (s Settings) ModelName(purpose Purpose) string {
	switch purpose {
	case PurposeText2SQL:
		return firstNonEmpty(s.Text2SQLModel, s.Model, defaultText2SQLModel)
	case PurposeRouter:
		return firstNonEmpty(s.RouterModel, s.ChatModel, s.Model, defaultChatModel)
	default:
		return firstNonEmpty(s.ChatModel, s.Model, defaultChatModel)
	}
}

// Provider hands out one FallbackClient per purpose, built on first use.
type Provider struct {
	settings Settings
	metrics  Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[Purpose]*FallbackClient
}

func NewProvider(settings Settings, metrics Metrics, logger *slog.Logger) *Provider {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		clients:  map[Purpose]*FallbackClient{},
	}
}

func (p *Provider) Client(purpose Purpose) (*FallbackClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[purpose]; ok {
		return existing, nil
	}
	client, err := NewFallbackClient(purpose, p.Candidates(purpose), p.settings.Retry, p.metrics, p.logger)
	if err != nil {
		return nil, err
	}
	p.clients[purpose] = client
	return client, nil
}

// For is Client for callers that only need the Client interface. The candidate list is never
// empty, so construction cannot fail.
func (p *Provider) For(purpose Purpose) Client {
	client, err := p.Client(purpose)
	if err != nil {
		return OfflineResponder{}
	}
	return client
}

func (p *Provider) Candidates(purpose Purpose) []Candidate {
	model := p.settings.ModelName(purpose)
	offline := Candidate{
		Provider: ProviderOffline,
		Model:    ProviderOffline,
		Factory:  func() (Client, error) { return OfflineResponder{}, nil },
	}

	switch strings.ToLower(strings.TrimSpace(p.settings.Provider)) {
	case ProviderOllama:
		endpoint := firstNonEmpty(p.settings.OllamaEndpoint, p.settings.Endpoint, DefaultOllamaEndpoint)
		return []Candidate{
			{
				Provider: ProviderOllama,
				Model:    model,
				Factory: func() (Client, error) {
					return NewOllamaClient(OllamaConfig{Endpoint: endpoint, Model: model, Timeout: p.settings.Retry.Timeout})
				},
			},
			offline,
		}
	case ProviderOpenAI:
		return []Candidate{
			{
				Provider: ProviderOpenAI,
				Model:    model,
				Factory: func() (Client, error) {
					return NewOpenAIClient(OpenAIConfig{
						BaseURL:     p.settings.Endpoint,
						APIKey:      p.settings.APIKey,
						Model:       model,
						Temperature: p.settings.Temperature,
						Timeout:     p.settings.Retry.Timeout,
					})
				},
			},
			offline,
		}
	default:
		return []Candidate{offline}
	}
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for purpose, client := range p.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.clients, purpose)
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

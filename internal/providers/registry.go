package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// LLMProviderConfig describes one configured chat provider with its API key
// already resolved.
type LLMProviderConfig struct {
	Type       string // "openai" or "openrouter"
	Model      string
	APIKey     string
	BaseURL    string
	RateLimit  int // Requests per minute
	MaxRetries int
	Enabled    bool
}

// Registry holds the configured LLM clients. It is rebuilt from config on
// startup and on every config reload.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]LLMClient
	configs map[string]LLMProviderConfig
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clients: make(map[string]LLMClient),
		configs: make(map[string]LLMProviderConfig),
		logger:  logger,
	}
}

// NewRegistryFromConfig creates a registry with every enabled provider that has a key.
func NewRegistryFromConfig(cfgs map[string]LLMProviderConfig, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Reload(cfgs)
	return r
}

// Register adds or replaces a client by name.
func (r *Registry) Register(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	delete(r.configs, name)
}

// Get returns a client by name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// Names returns the registered client names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload brings the registry in line with cfgs. Clients whose settings are
// unchanged are kept; disabled or keyless providers are removed.
func (r *Registry) Reload(cfgs map[string]LLMProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, cfg := range cfgs {
		if !cfg.Enabled || cfg.APIKey == "" {
			continue
		}
		want[name] = true

		prev, exists := r.configs[name]
		if exists && prev == cfg {
			continue
		}
		client := createLLMClient(cfg)
		if client == nil {
			r.logger.Warn("unknown LLM provider type", "name", name, "type", cfg.Type)
			continue
		}
		r.clients[name] = client
		r.configs[name] = cfg
		if exists {
			r.logger.Info("updated LLM client", "name", name, "type", cfg.Type, "model", cfg.Model)
		} else {
			r.logger.Info("registered LLM client", "name", name, "type", cfg.Type, "model", cfg.Model)
		}
	}

	for name := range r.configs {
		if !want[name] {
			delete(r.clients, name)
			delete(r.configs, name)
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
}

func createLLMClient(cfg LLMProviderConfig) LLMClient {
	switch cfg.Type {
	case OpenAIName, OpenRouterName:
		return NewOpenAIClient(OpenAIConfig{
			Type:       cfg.Type,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil
	}
}

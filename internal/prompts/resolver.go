package prompts

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver resolves prompts by key.
// Resolution order: config override > embedded default.
type Resolver struct {
	mu        sync.RWMutex
	embedded  map[string]EmbeddedPrompt
	overrides map[string]string
	logger    *slog.Logger
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]string),
		logger:    logger,
	}
}

// Register adds an embedded prompt.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}
	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// SetOverrides replaces all overrides. Keys with no embedded prompt are
// logged and ignored.
func (r *Resolver) SetOverrides(overrides map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overrides = make(map[string]string, len(overrides))
	for key, text := range overrides {
		if _, ok := r.embedded[key]; !ok {
			r.logger.Warn("ignoring override for unknown prompt", "key", key)
			continue
		}
		if text == "" {
			continue
		}
		r.overrides[key] = text
	}
}

// Resolve returns the override for key if one is set, otherwise the
// embedded default.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	embedded, ok := r.embedded[key]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}
	if text, ok := r.overrides[key]; ok {
		return &ResolvedPrompt{
			Key:        key,
			Text:       text,
			Variables:  ExtractVariables(text),
			IsOverride: true,
			Hash:       HashText(text),
		}, nil
	}
	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// List returns every prompt as it currently resolves, sorted by key.
func (r *Resolver) List() []ResolvedPrompt {
	r.mu.RLock()
	keys := make([]string, 0, len(r.embedded))
	for key := range r.embedded {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	out := make([]ResolvedPrompt, 0, len(keys))
	for _, key := range keys {
		if p, err := r.Resolve(key); err == nil {
			out = append(out, *p)
		}
	}
	return out
}

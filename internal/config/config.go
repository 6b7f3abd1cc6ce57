package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/bitbybit/internal/providers"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/structure"
	"github.com/jackzampolin/bitbybit/internal/tracking"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	logger    *slog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:         viper.New(),
		logger:    logger,
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()

	// Leaf defaults so a config file or env var can override single fields.
	v.SetDefault("storage.driver", defaults.Storage.Driver)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.dsn", defaults.Storage.DSN)
	v.SetDefault("storage.debug", defaults.Storage.Debug)
	v.SetDefault("llm_providers", defaults.LLMProviders)
	v.SetDefault("defaults.llm_provider", defaults.Defaults.LLMProvider)
	v.SetDefault("defaults.model", defaults.Defaults.Model)
	v.SetDefault("structuring.use_native_outline", defaults.Structuring.UseNativeOutline)
	v.SetDefault("structuring.batch_size", defaults.Structuring.BatchSize)
	v.SetDefault("structuring.restructure_policy", defaults.Structuring.RestructurePolicy)
	v.SetDefault("structuring.claim_ttl", defaults.Structuring.ClaimTTL)
	v.SetDefault("structuring.pdftoppm", defaults.Structuring.Pdftoppm)
	v.SetDefault("structuring.render_dpi", defaults.Structuring.RenderDPI)
	v.SetDefault("structuring.max_image_width", defaults.Structuring.MaxImageWidth)
	v.SetDefault("tracking.mode", defaults.Tracking.Mode)
	v.SetDefault("tracking.threshold_seconds", defaults.Tracking.ThresholdSeconds)
	v.SetDefault("tracking.scroll_proximity", defaults.Tracking.ScrollProximity)
	v.SetDefault("tracking.session_ttl", defaults.Tracking.SessionTTL)

	// Environment variables with BITBYBIT_ prefix, e.g. BITBYBIT_STORAGE_DRIVER
	v.SetEnvPrefix("BITBYBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bitbybit")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// File returns the config file in use, or "" when running on defaults.
func (cm *Manager) File() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A changed file that
// fails to parse or validate is ignored and the previous config stays.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			cm.logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var err error

	switch c.Storage.Driver {
	case store.DriverSQLite, store.DriverMemory:
	case store.DriverPostgres:
		if c.Storage.DSN == "" {
			err = multierr.Append(err, errors.New("storage.dsn is required for postgres"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("storage.driver %q must be sqlite, postgres or memory", c.Storage.Driver))
	}

	for name, p := range c.LLMProviders {
		if p.Type != providers.OpenAIName && p.Type != providers.OpenRouterName {
			err = multierr.Append(err, fmt.Errorf("llm_providers.%s.type %q must be openai or openrouter", name, p.Type))
		}
		if p.RateLimit < 0 {
			err = multierr.Append(err, fmt.Errorf("llm_providers.%s.rate_limit must not be negative", name))
		}
	}
	if c.Defaults.LLMProvider != "" {
		if _, ok := c.LLMProviders[c.Defaults.LLMProvider]; !ok {
			err = multierr.Append(err, fmt.Errorf("defaults.llm_provider %q is not configured", c.Defaults.LLMProvider))
		}
	}

	if c.Structuring.BatchSize < 1 {
		err = multierr.Append(err, fmt.Errorf("structuring.batch_size must be at least 1, got %d", c.Structuring.BatchSize))
	}
	if !structure.RestructurePolicy(c.Structuring.RestructurePolicy).Valid() {
		err = multierr.Append(err, fmt.Errorf("structuring.restructure_policy %q must be skip or replace", c.Structuring.RestructurePolicy))
	}
	if c.Structuring.ClaimTTL < 0 {
		err = multierr.Append(err, errors.New("structuring.claim_ttl must not be negative"))
	}

	err = multierr.Append(err, c.TrackingConfig().Validate())
	if c.Tracking.SessionTTL < 0 {
		err = multierr.Append(err, errors.New("tracking.session_ttl must not be negative"))
	}

	return err
}

// TrackingConfig converts the tracking section for tracking.NewTracker.
func (c *Config) TrackingConfig() tracking.Config {
	mode, err := tracking.ParseMode(c.Tracking.Mode)
	if err != nil {
		// Keep the raw value so Validate reports it.
		mode = tracking.Mode(c.Tracking.Mode)
	}
	return tracking.Config{
		Mode:            mode,
		Threshold:       time.Duration(c.Tracking.ThresholdSeconds) * time.Second,
		ScrollProximity: c.Tracking.ScrollProximity,
	}
}

// StoreOptions converts the storage section. defaultPath is used for
// sqlite when no path is configured.
func (c *Config) StoreOptions(defaultPath string, logger *slog.Logger) store.Options {
	path := c.Storage.Path
	if path == "" {
		path = defaultPath
	}
	return store.Options{
		Driver: c.Storage.Driver,
		Path:   path,
		DSN:    ResolveEnvVars(c.Storage.DSN),
		Debug:  c.Storage.Debug,
		Logger: logger,
	}
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() map[string]providers.LLMProviderConfig {
	cfg := make(map[string]providers.LLMProviderConfig, len(c.LLMProviders))
	for name, llm := range c.LLMProviders {
		cfg[name] = providers.LLMProviderConfig{
			Type:       llm.Type,
			Model:      llm.Model,
			APIKey:     ResolveEnvVars(llm.APIKey),
			BaseURL:    llm.BaseURL,
			RateLimit:  llm.RateLimit,
			MaxRetries: llm.MaxRetries,
			Enabled:    llm.Enabled,
		}
	}
	return cfg
}

// Redacted returns a copy safe to show to clients: literal API keys and
// DSNs are masked, ${ENV_VAR} references are kept.
func (c *Config) Redacted() *Config {
	out := *c
	out.Storage.DSN = redact(c.Storage.DSN)
	out.LLMProviders = make(map[string]LLMProviderCfg, len(c.LLMProviders))
	for name, p := range c.LLMProviders {
		p.APIKey = redact(p.APIKey)
		out.LLMProviders[name] = p
	}
	return &out
}

func redact(s string) string {
	if s == "" || envPattern.MatchString(s) {
		return s
	}
	return "********"
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# bitbybit configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENROUTER_API_KEY=xxx OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

package config

import (
	"time"

	"github.com/jackzampolin/bitbybit/internal/store"
)

// Config holds bitbybit configuration.
// Stored at: ./config.yaml or ~/.bitbybit/config.yaml
type Config struct {
	Storage      StorageCfg                `mapstructure:"storage" yaml:"storage" json:"storage"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers" json:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults" json:"defaults"`
	Structuring  StructuringCfg            `mapstructure:"structuring" yaml:"structuring" json:"structuring"`
	Tracking     TrackingCfg               `mapstructure:"tracking" yaml:"tracking" json:"tracking"`

	// Prompts overrides embedded prompt texts by key.
	Prompts map[string]string `mapstructure:"prompts" yaml:"prompts,omitempty" json:"prompts"`
}

// StorageCfg selects the database.
type StorageCfg struct {
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"` // "sqlite", "postgres", "memory"
	Path   string `mapstructure:"path" yaml:"path" json:"path"`       // sqlite file (default: ~/.bitbybit/data/bitbybit.db)
	DSN    string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`          // postgres DSN (supports ${ENV_VAR} syntax)
	Debug  bool   `mapstructure:"debug" yaml:"debug" json:"debug"`    // log every postgres query
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type       string `mapstructure:"type" yaml:"type" json:"type"`             // "openai", "openrouter"
	Model      string `mapstructure:"model" yaml:"model" json:"model"`          // Model name
	APIKey     string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`    // API key (supports ${ENV_VAR} syntax)
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"` // Optional endpoint override
	RateLimit  int    `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider string `mapstructure:"llm_provider" yaml:"llm_provider" json:"llm_provider"` // Provider used for section splitting
	Model       string `mapstructure:"model" yaml:"model" json:"model"`                      // Overrides the provider's model when set
}

// StructuringCfg tunes import and section splitting.
type StructuringCfg struct {
	UseNativeOutline  bool          `mapstructure:"use_native_outline" yaml:"use_native_outline" json:"use_native_outline"`
	BatchSize         int           `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"` // Pages per chapter when there is no outline
	RestructurePolicy string        `mapstructure:"restructure_policy" yaml:"restructure_policy" json:"restructure_policy"`
	ClaimTTL          time.Duration `mapstructure:"claim_ttl" yaml:"claim_ttl" json:"claim_ttl"`
	Pdftoppm          string        `mapstructure:"pdftoppm" yaml:"pdftoppm" json:"pdftoppm"`
	RenderDPI         int           `mapstructure:"render_dpi" yaml:"render_dpi" json:"render_dpi"`
	MaxImageWidth     int           `mapstructure:"max_image_width" yaml:"max_image_width" json:"max_image_width"`
}

// TrackingCfg configures automatic read tracking.
type TrackingCfg struct {
	Mode             string        `mapstructure:"mode" yaml:"mode" json:"mode"` // "timer" or "endofpage"
	ThresholdSeconds int           `mapstructure:"threshold_seconds" yaml:"threshold_seconds" json:"threshold_seconds"`
	ScrollProximity  float64       `mapstructure:"scroll_proximity" yaml:"scroll_proximity" json:"scroll_proximity"`
	SessionTTL       time.Duration `mapstructure:"session_ttl" yaml:"session_ttl" json:"session_ttl"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageCfg{
			Driver: store.DriverSQLite,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:      "openrouter",
				Model:     "google/gemini-2.5-flash",
				APIKey:    "${OPENROUTER_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider: "openrouter",
		},
		Structuring: StructuringCfg{
			UseNativeOutline:  true,
			BatchSize:         10,
			RestructurePolicy: "skip",
			ClaimTTL:          10 * time.Minute,
			Pdftoppm:          "pdftoppm",
			RenderDPI:         150,
			MaxImageWidth:     1280,
		},
		Tracking: TrackingCfg{
			Mode:             "timer",
			ThresholdSeconds: 5,
			ScrollProximity:  50,
			SessionTTL:       time.Hour,
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

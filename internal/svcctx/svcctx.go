// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/home"
	"github.com/jackzampolin/bitbybit/internal/jobs"
	"github.com/jackzampolin/bitbybit/internal/progress"
	"github.com/jackzampolin/bitbybit/internal/providers"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/structure"
	"github.com/jackzampolin/bitbybit/internal/tracking"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store         store.Store
	JobManager    *jobs.Manager
	Registry      *providers.Registry
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
	Importer      *structure.Importer
	Splitter      *structure.Splitter
	Progress      *progress.Query
	Sessions      *tracking.Sessions
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigFrom returns the current configuration, or the defaults when the
// server runs without a config manager.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil && s.ConfigManager != nil {
		return s.ConfigManager.Get()
	}
	return config.DefaultConfig()
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ImporterFrom extracts the book importer from context.
func ImporterFrom(ctx context.Context) *structure.Importer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Importer
	}
	return nil
}

// SplitterFrom extracts the section splitter from context.
func SplitterFrom(ctx context.Context) *structure.Splitter {
	if s := ServicesFrom(ctx); s != nil {
		return s.Splitter
	}
	return nil
}

// ProgressFrom extracts the progress query helper from context.
func ProgressFrom(ctx context.Context) *progress.Query {
	if s := ServicesFrom(ctx); s != nil {
		return s.Progress
	}
	return nil
}

// SessionsFrom extracts the tracking session registry from context.
func SessionsFrom(ctx context.Context) *tracking.Sessions {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

package endpoints

import (
	"github.com/jackzampolin/bitbybit/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// MaxUploadBytes bounds an imported PDF. Default 500MB.
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Book endpoints
		&ImportBookEndpoint{MaxBytes: cfg.MaxUploadBytes},
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&DeleteBookEndpoint{},
		&OpenBookEndpoint{},
		&ListChaptersEndpoint{},
		&StructureChapterEndpoint{},
		&StructureBookEndpoint{},
		&BookProgressEndpoint{},
		&LibraryProgressEndpoint{},

		// Job endpoints
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
		&CancelJobEndpoint{},

		// Section endpoints
		&GetSectionEndpoint{},
		&MarkReadEndpoint{},
		&MarkUnreadEndpoint{},
		&UpdatePositionEndpoint{},

		// Tracking session endpoints
		&OpenSessionEndpoint{},
		&ScrollSessionEndpoint{},
		&CloseSessionEndpoint{},

		// LLM call log
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},

		// Settings
		&SettingsEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}

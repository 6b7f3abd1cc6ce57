package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/config"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
)

// SettingsResponse is the active configuration with secrets masked.
type SettingsResponse struct {
	ConfigFile string         `json:"config_file,omitempty"`
	Settings   *config.Config `json:"settings"`
}

// SettingsEndpoint handles GET /api/settings.
type SettingsEndpoint struct{}

func (e *SettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *SettingsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Show the active settings
//	@Description	Literal API keys and the database DSN are masked. Edit the config file to change settings; it is reloaded on save.
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Router			/api/settings [get]
func (e *SettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := SettingsResponse{Settings: svcctx.ConfigFrom(r.Context()).Redacted()}
	if mgr := svcctx.ConfigManagerFrom(r.Context()); mgr != nil {
		resp.ConfigFile = mgr.File()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the server's active settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

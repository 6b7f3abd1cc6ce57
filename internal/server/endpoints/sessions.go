package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
	"github.com/jackzampolin/bitbybit/internal/tracking"
)

// Remote readers drive read tracking through sessions: open one when a
// section is displayed, report scrolls, close it when the section goes away.

// OpenSessionEndpoint handles POST /api/sections/{id}/sessions.
type OpenSessionEndpoint struct{}

func (e *OpenSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sections/{id}/sessions", e.handler
}

func (e *OpenSessionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start read tracking for a displayed section
//	@Description	Uses the configured tracking mode. A section already read gets an inactive session.
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Section ID"
//	@Param			request	body		tracking.Viewport	false	"Initial viewport"
//	@Success		201		{object}	tracking.SessionInfo
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sections/{id}/sessions [post]
func (e *OpenSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	sessions := svcctx.SessionsFrom(r.Context())
	if st == nil || sessions == nil {
		unavailable(w, "tracking")
		return
	}

	var v tracking.Viewport
	if err := decodeJSON(r, &v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sec, err := st.GetSection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessions.Open(sec.ID, sec.IsRead, v))
}

func (e *OpenSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "track <section-id>",
		Short: "Open a read tracking session for a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tracking.SessionInfo
			if err := client.Post(cmd.Context(), "/api/sections/"+args[0]+"/sessions", tracking.Viewport{}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ScrollSessionEndpoint handles POST /api/sessions/{id}/scroll.
type ScrollSessionEndpoint struct{}

func (e *ScrollSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/scroll", e.handler
}

func (e *ScrollSessionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Report a scroll position to a tracking session
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Session ID"
//	@Param		request	body		tracking.Viewport	true	"Viewport"
//	@Success	200		{object}	tracking.SessionInfo
//	@Failure	400		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/sessions/{id}/scroll [post]
func (e *ScrollSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		unavailable(w, "tracking")
		return
	}

	var v tracking.Viewport
	if err := decodeJSON(r, &v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := sessions.Scroll(r.PathValue("id"), v)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (e *ScrollSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var v tracking.Viewport
	cmd := &cobra.Command{
		Use:   "scroll <session-id>",
		Short: "Report a scroll position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tracking.SessionInfo
			if err := client.Post(cmd.Context(), "/api/sessions/"+args[0]+"/scroll", v, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().Float64Var(&v.ScrollTop, "top", 0, "Scroll offset")
	cmd.Flags().Float64Var(&v.ClientHeight, "client-height", 0, "Visible height")
	cmd.Flags().Float64Var(&v.ScrollHeight, "scroll-height", 0, "Total content height")
	return cmd
}

// CloseSessionEndpoint handles DELETE /api/sessions/{id}.
type CloseSessionEndpoint struct{}

func (e *CloseSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sessions/{id}", e.handler
}

func (e *CloseSessionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Stop tracking a section
//	@Tags		sessions
//	@Param		id	path	string	true	"Session ID"
//	@Success	204	"No Content"
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/sessions/{id} [delete]
func (e *CloseSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		unavailable(w, "tracking")
		return
	}
	if err := sessions.Close(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *CloseSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a tracking session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/sessions/"+args[0], nil); err != nil {
				return err
			}
			fmt.Println("Session closed")
			return nil
		},
	}
}

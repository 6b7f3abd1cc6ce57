package endpoints

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// GetSectionEndpoint handles GET /api/sections/{id}.
type GetSectionEndpoint struct{}

func (e *GetSectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sections/{id}", e.handler
}

func (e *GetSectionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Get a section with its text
//	@Tags		sections
//	@Produce	json
//	@Param		id	path		string	true	"Section ID"
//	@Success	200	{object}	types.Section
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/sections/{id} [get]
func (e *GetSectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	sec, err := st.GetSection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (e *GetSectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a section by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Section
			if err := client.Get(cmd.Context(), "/api/sections/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// MarkReadEndpoint handles POST /api/sections/{id}/read.
type MarkReadEndpoint struct{}

func (e *MarkReadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sections/{id}/read", e.handler
}

func (e *MarkReadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Mark a section read
//	@Description	Idempotent. A section already read keeps its original read time.
//	@Tags			sections
//	@Produce		json
//	@Param			id	path		string	true	"Section ID"
//	@Success		200	{object}	types.Section
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sections/{id}/read [post]
func (e *MarkReadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	id := r.PathValue("id")
	if err := st.MarkSectionRead(r.Context(), id, time.Now().UTC()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSection(w, r, id)
}

func (e *MarkReadEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a section read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Section
			if err := client.Post(cmd.Context(), "/api/sections/"+args[0]+"/read", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// MarkUnreadEndpoint handles DELETE /api/sections/{id}/read.
type MarkUnreadEndpoint struct{}

func (e *MarkUnreadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sections/{id}/read", e.handler
}

func (e *MarkUnreadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Mark a section unread
//	@Tags		sections
//	@Produce	json
//	@Param		id	path		string	true	"Section ID"
//	@Success	200	{object}	types.Section
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/sections/{id}/read [delete]
func (e *MarkUnreadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	id := r.PathValue("id")
	if err := st.MarkSectionUnread(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSection(w, r, id)
}

func (e *MarkUnreadEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "unread <id>",
		Short: "Mark a section unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp types.Section
			if err := client.Delete(cmd.Context(), "/api/sections/"+args[0]+"/read", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PositionRequest records where the reader stopped in a section.
type PositionRequest struct {
	LastPageViewed *int     `json:"last_page_viewed,omitempty"`
	ScrollProgress *float64 `json:"scroll_progress,omitempty"` // percent, 0-100
}

// UpdatePositionEndpoint handles PATCH /api/sections/{id}/position.
type UpdatePositionEndpoint struct{}

func (e *UpdatePositionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/sections/{id}/position", e.handler
}

func (e *UpdatePositionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Save the reading position in a section
//	@Description	Omitted fields keep their stored value
//	@Tags			sections
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Section ID"
//	@Param			request	body		PositionRequest	true	"Position"
//	@Success		200		{object}	types.Section
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sections/{id}/position [patch]
func (e *UpdatePositionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}

	var req PositionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	if err := st.UpdateSectionPosition(r.Context(), id, req.LastPageViewed, req.ScrollProgress); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSection(w, r, id)
}

func (req PositionRequest) validate() error {
	if req.ScrollProgress != nil && (*req.ScrollProgress < 0 || *req.ScrollProgress > 100) {
		return fmt.Errorf("scroll_progress must be a percentage between 0 and 100")
	}
	if req.LastPageViewed != nil && *req.LastPageViewed < 1 {
		return fmt.Errorf("last_page_viewed must be a 1-based page number")
	}
	return nil
}

func (e *UpdatePositionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var page int
	var scroll string
	cmd := &cobra.Command{
		Use:   "position <id>",
		Short: "Save the reading position in a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req PositionRequest
			if page > 0 {
				req.LastPageViewed = &page
			}
			if scroll != "" {
				f, err := strconv.ParseFloat(scroll, 64)
				if err != nil {
					return fmt.Errorf("invalid --scroll: %w", err)
				}
				req.ScrollProgress = &f
			}

			client := api.NewClient(getServerURL())
			var resp types.Section
			if err := client.Patch(cmd.Context(), "/api/sections/"+args[0]+"/position", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Last page viewed")
	cmd.Flags().StringVar(&scroll, "scroll", "", "Scroll progress percentage (0-100)")
	return cmd
}

func writeSection(w http.ResponseWriter, r *http.Request, id string) {
	sec, err := svcctx.StoreFrom(r.Context()).GetSection(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

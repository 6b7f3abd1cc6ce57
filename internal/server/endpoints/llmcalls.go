package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
)

const defaultCallLimit = 100

// ListLLMCallsResponse is the response for listing LLM calls. Summary
// totals the returned calls.
type ListLLMCallsResponse struct {
	Calls   []llmcall.Call  `json:"calls"`
	Summary llmcall.Summary `json:"summary"`
}

// ListLLMCallsEndpoint handles GET /api/llm-calls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llm-calls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List recorded LLM calls
//	@Description	Newest first, with token and failure totals
//	@Tags			llm-calls
//	@Produce		json
//	@Param			book_id		query		string	false	"Filter by book"
//	@Param			chapter_id	query		string	false	"Filter by chapter"
//	@Param			prompt_key	query		string	false	"Filter by prompt key"
//	@Param			success		query		bool	false	"Filter by outcome"
//	@Param			limit		query		int		false	"Max results (default 100)"
//	@Success		200			{object}	ListLLMCallsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Router			/api/llm-calls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}

	q := r.URL.Query()
	filter := llmcall.Filter{
		BookID:    q.Get("book_id"),
		ChapterID: q.Get("chapter_id"),
		PromptKey: q.Get("prompt_key"),
		Limit:     defaultCallLimit,
	}
	if v := q.Get("success"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "success must be true or false")
			return
		}
		filter.Success = &ok
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	calls, err := st.ListLLMCalls(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if calls == nil {
		calls = []llmcall.Call{}
	}
	writeJSON(w, http.StatusOK, ListLLMCallsResponse{
		Calls:   calls,
		Summary: llmcall.Summarize(calls),
	})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var bookID, chapterID string
	var failed bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if bookID != "" {
				params.Set("book_id", bookID)
			}
			if chapterID != "" {
				params.Set("chapter_id", chapterID)
			}
			if failed {
				params.Set("success", "false")
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/llm-calls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			client := api.NewClient(getServerURL())
			var resp ListLLMCallsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "Filter by book ID")
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Filter by chapter ID")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only failed calls")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llm-calls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llm-calls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Get a recorded LLM call with its raw response
//	@Tags		llm-calls
//	@Produce	json
//	@Param		id	path		string	true	"Call ID"
//	@Success	200	{object}	llmcall.Call
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/llm-calls/{id} [get]
func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	call, err := st.GetLLMCall(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a recorded LLM call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp llmcall.Call
			if err := client.Get(cmd.Context(), "/api/llm-calls/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

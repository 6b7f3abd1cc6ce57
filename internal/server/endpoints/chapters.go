package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/jobs"
	"github.com/jackzampolin/bitbybit/internal/jobs/structure_book"
	"github.com/jackzampolin/bitbybit/internal/progress"
	"github.com/jackzampolin/bitbybit/internal/structure"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// StructureJobKey is the job key that keeps one structuring run per book.
func StructureJobKey(bookID string) string {
	return "structure:" + bookID
}

// ChapterResponse is a chapter with its sections and progress. Section text
// is left out; fetch a section to read it.
type ChapterResponse struct {
	types.Chapter
	Sections []types.Section   `json:"sections"`
	Progress progress.Progress `json:"progress"`
}

// ListChaptersResponse is the response for listing a book's chapters.
type ListChaptersResponse struct {
	BookID   string            `json:"book_id"`
	Chapters []ChapterResponse `json:"chapters"`
}

// ListChaptersEndpoint handles GET /api/books/{id}/chapters.
type ListChaptersEndpoint struct{}

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List chapters
//	@Description	Chapters in reading order, each with its sections (without text) and progress
//	@Tags			chapters
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	ListChaptersResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/books/{id}/chapters [get]
func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	bookID := r.PathValue("id")
	if _, err := st.GetBook(r.Context(), bookID); err != nil {
		writeServiceError(w, err)
		return
	}

	chapters, err := st.ListChapters(r.Context(), bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ListChaptersResponse{BookID: bookID, Chapters: make([]ChapterResponse, 0, len(chapters))}
	for _, ch := range chapters {
		sections, err := st.ListSectionsByChapter(r.Context(), ch.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		for i := range sections {
			sections[i].ExtractedText = nil
		}
		resp.Chapters = append(resp.Chapters, ChapterResponse{
			Chapter:  ch,
			Sections: sections,
			Progress: progress.Of(sections),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <book-id>",
		Short: "List a book's chapters and sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListChaptersResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/chapters", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StructureChapterEndpoint handles POST /api/books/{id}/chapters/{chapter_id}/structure.
type StructureChapterEndpoint struct{}

func (e *StructureChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{id}/chapters/{chapter_id}/structure", e.handler
}

func (e *StructureChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Split one chapter into sections
//	@Description	Runs synchronously. A chapter that already has sections is skipped unless the restructure policy is replace.
//	@Tags			chapters
//	@Produce		json
//	@Param			id			path		string	true	"Book ID"
//	@Param			chapter_id	path		string	true	"Chapter ID"
//	@Success		200			{object}	structure.ChapterResult
//	@Failure		404			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		412			{object}	ErrorResponse
//	@Failure		502			{object}	ErrorResponse
//	@Router			/api/books/{id}/chapters/{chapter_id}/structure [post]
func (e *StructureChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	splitter := svcctx.SplitterFrom(r.Context())
	if splitter == nil {
		unavailable(w, "splitter")
		return
	}
	result, err := splitter.ProcessChapter(r.Context(), r.PathValue("id"), r.PathValue("chapter_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *StructureChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "structure-chapter <book-id> <chapter-id>",
		Short: "Split one chapter into sections now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp structure.ChapterResult
			path := "/api/books/" + args[0] + "/chapters/" + args[1] + "/structure"
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StructureBookRequest is the optional body for starting a structuring job.
type StructureBookRequest struct {
	PriorityChapterID string `json:"priority_chapter_id,omitempty"`
}

// StructureBookEndpoint handles POST /api/books/{id}/structure.
type StructureBookEndpoint struct{}

func (e *StructureBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{id}/structure", e.handler
}

func (e *StructureBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Structure every chapter of a book
//	@Description	Starts a background job that splits all unstructured chapters, the priority chapter first
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Book ID"
//	@Param			request	body		StructureBookRequest	false	"Job options"
//	@Success		202		{object}	jobs.Record
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/books/{id}/structure [post]
func (e *StructureBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	jm := svcctx.JobManagerFrom(r.Context())
	splitter := svcctx.SplitterFrom(r.Context())
	if st == nil || jm == nil || splitter == nil {
		unavailable(w, "job manager")
		return
	}

	var req StructureBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookID := r.PathValue("id")
	if _, err := st.GetBook(r.Context(), bookID); err != nil {
		writeServiceError(w, err)
		return
	}

	job, err := structure_book.NewJob(structure_book.Config{
		BookID:            bookID,
		PriorityChapterID: req.PriorityChapterID,
	}, splitter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := jm.Submit(job, StructureJobKey(bookID), job.Metadata())
	if err != nil {
		if errors.Is(err, jobs.ErrConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (e *StructureBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var priority string
	cmd := &cobra.Command{
		Use:   "structure <book-id>",
		Short: "Start structuring every chapter of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp jobs.Record
			req := StructureBookRequest{PriorityChapterID: priority}
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/structure", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "Chapter ID to structure first")
	return cmd
}

// BookProgressEndpoint handles GET /api/books/{id}/progress.
type BookProgressEndpoint struct{}

func (e *BookProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/progress", e.handler
}

func (e *BookProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Reading progress for a book, per chapter
//	@Tags		progress
//	@Produce	json
//	@Param		id	path		string	true	"Book ID"
//	@Success	200	{object}	progress.Breakdown
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/books/{id}/progress [get]
func (e *BookProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := svcctx.ProgressFrom(r.Context())
	if q == nil {
		unavailable(w, "progress")
		return
	}
	b, err := q.Breakdown(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (e *BookProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <book-id>",
		Short: "Show reading progress for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp progress.Breakdown
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/progress", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// LibraryProgressEndpoint handles GET /api/library.
type LibraryProgressEndpoint struct{}

func (e *LibraryProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/library", e.handler
}

func (e *LibraryProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Reading progress across the library
//	@Tags		progress
//	@Produce	json
//	@Success	200	{object}	progress.Library
//	@Failure	500	{object}	ErrorResponse
//	@Router		/api/library [get]
func (e *LibraryProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := svcctx.ProgressFrom(r.Context())
	if q == nil {
		unavailable(w, "progress")
		return
	}
	lib, err := q.Library(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (e *LibraryProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show reading progress across the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp progress.Library
			if err := client.Get(cmd.Context(), "/api/library", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

package endpoints

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/jobs"
	"github.com/jackzampolin/bitbybit/internal/progress"
	"github.com/jackzampolin/bitbybit/internal/structure"
	"github.com/jackzampolin/bitbybit/internal/svcctx"
	"github.com/jackzampolin/bitbybit/internal/types"
)

const defaultMaxUploadBytes = 500 << 20 // 500MB

// BookResponse is a book with its reading progress.
type BookResponse struct {
	types.Book
	Progress progress.Progress `json:"progress"`
}

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []BookResponse `json:"books"`
}

// ImportBookEndpoint handles POST /api/books with a multipart PDF upload.
type ImportBookEndpoint struct {
	MaxBytes int64
}

var _ api.Endpoint = (*ImportBookEndpoint)(nil)

func (e *ImportBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *ImportBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Import a PDF
//	@Description	Store a PDF as a new book and build its chapters, from the embedded outline when it has one
//	@Tags			books
//	@Accept			mpfd
//	@Produce		json
//	@Param			file				formData	file	true	"PDF file"
//	@Param			title				formData	string	false	"Book title (document metadata if not provided)"
//	@Param			author				formData	string	false	"Book author"
//	@Param			use_native_outline	formData	bool	false	"Build chapters from the PDF outline (config default)"
//	@Success		201	{object}	BookResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books [post]
func (e *ImportBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	importer := svcctx.ImporterFrom(r.Context())
	if importer == nil {
		unavailable(w, "importer")
		return
	}

	maxBytes := e.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	useOutline := svcctx.ConfigFrom(r.Context()).Structuring.UseNativeOutline
	if v := r.FormValue("use_native_outline"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "use_native_outline must be a boolean")
			return
		}
		useOutline = b
	}

	logger := svcctx.LoggerFrom(r.Context())
	book, err := importer.Import(r.Context(), payload, structure.ImportOptions{
		UseNativeOutline: useOutline,
		Title:            r.FormValue("title"),
		Author:           r.FormValue("author"),
		OnProgress: func(message string, percent int) {
			if logger != nil {
				logger.Debug("import progress", "message", message, "percent", percent)
			}
		},
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := BookResponse{Book: *book}
	if q := svcctx.ProgressFrom(r.Context()); q != nil {
		if p, err := q.Book(r.Context(), book.ID); err == nil {
			resp.Progress = p
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (e *ImportBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title, author string
	var noOutline bool
	cmd := &cobra.Command{
		Use:   "import <file.pdf>",
		Short: "Import a PDF into the library",
		Long: `Upload a PDF and build its chapters.

Chapters come from the PDF's bookmarks when it has any. Otherwise the book
gets fixed-size provisional chapters; run 'bitbybit api books structure <id>'
to split them into sections.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			fields := map[string]string{}
			if title != "" {
				fields["title"] = title
			}
			if author != "" {
				fields["author"] = author
			}
			if noOutline {
				fields["use_native_outline"] = "false"
			}

			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Upload(cmd.Context(), "/api/books", "file", filepath.Base(args[0]), f, fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Book title (document metadata if not provided)")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().BoolVar(&noOutline, "no-outline", false, "Ignore the PDF outline and use provisional chapters")
	return cmd
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	Most recently read first; books never opened follow, newest import first
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	ListBooksResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	q := svcctx.ProgressFrom(r.Context())
	if st == nil || q == nil {
		unavailable(w, "store")
		return
	}

	books, err := st.ListBooks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := ListBooksResponse{Books: make([]BookResponse, 0, len(books))}
	for _, b := range books {
		p, err := q.Book(r.Context(), b.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp.Books = append(resp.Books, BookResponse{Book: b, Progress: p})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), "/api/books", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetBookEndpoint handles GET /api/books/{id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Get a book with its progress
//	@Tags		books
//	@Produce	json
//	@Param		id	path		string	true	"Book ID"
//	@Success	200	{object}	BookResponse
//	@Failure	404	{object}	ErrorResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/api/books/{id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp, err := loadBook(r, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a book by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteBookEndpoint handles DELETE /api/books/{id}.
type DeleteBookEndpoint struct{}

func (e *DeleteBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{id}", e.handler
}

func (e *DeleteBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a book
//	@Description	Cancels a running structuring job, then removes the book with its chapters and sections
//	@Tags			books
//	@Param			id	path	string	true	"Book ID"
//	@Success		204	"No Content"
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/books/{id} [delete]
func (e *DeleteBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	id := r.PathValue("id")

	if jm := svcctx.JobManagerFrom(r.Context()); jm != nil {
		for _, rec := range jm.List(r.Context(), jobs.ListFilter{Key: StructureJobKey(id)}) {
			if rec.Status.Finished() {
				continue
			}
			if _, err := jm.Cancel(rec.ID); err == nil {
				waitCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
				jm.Wait(waitCtx, rec.ID)
				cancel()
			}
		}
	}

	if err := st.DeleteBook(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("deleted book", "book_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book and everything derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/books/"+args[0], nil); err != nil {
				return err
			}
			fmt.Println("Book deleted")
			return nil
		},
	}
}

// OpenBookEndpoint handles POST /api/books/{id}/open.
type OpenBookEndpoint struct{}

func (e *OpenBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{id}/open", e.handler
}

func (e *OpenBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Record that a book was opened
//	@Description	Moves the book to the front of the library list
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	BookResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/books/{id}/open [post]
func (e *OpenBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		unavailable(w, "store")
		return
	}
	id := r.PathValue("id")
	if err := st.TouchBook(r.Context(), id, time.Now().UTC()); err != nil {
		writeServiceError(w, err)
		return
	}
	resp, err := loadBook(r, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *OpenBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Mark a book as opened now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/open", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

func loadBook(r *http.Request, id string) (*BookResponse, error) {
	st := svcctx.StoreFrom(r.Context())
	q := svcctx.ProgressFrom(r.Context())
	if st == nil || q == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	book, err := st.GetBook(r.Context(), id)
	if err != nil {
		return nil, err
	}
	p, err := q.Book(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &BookResponse{Book: *book, Progress: p}, nil
}

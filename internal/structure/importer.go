package structure

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bitbybit/internal/document"
	"github.com/jackzampolin/bitbybit/internal/outline"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// ImporterConfig configures an Importer.
type ImporterConfig struct {
	Store     store.Store
	Opener    document.Opener
	BatchSize int // pages per provisional chapter; DefaultBatchSize when < 1
	Logger    *slog.Logger
}

// Importer creates a book and its initial structure from an uploaded PDF.
type Importer struct {
	store     store.Store
	opener    document.Opener
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewImporter creates an Importer.
func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Importer{
		store:     cfg.Store,
		opener:    cfg.Opener,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// ImportOptions configures one import.
type ImportOptions struct {
	// UseNativeOutline builds the structure from the PDF's bookmarks when
	// it has any. Otherwise the book gets provisional fixed-size chapters
	// for the Splitter.
	UseNativeOutline bool

	// Title and Author override the document's own metadata when set.
	Title  string
	Author string

	// OnProgress receives a message and a non-decreasing percentage,
	// ending with ("Done!", 100).
	OnProgress func(message string, percent int)
}

// Import validates payload, stores it as a new book and builds its first
// structure. Once the book record exists, a failure marks it StatusError.
func (im *Importer) Import(ctx context.Context, payload []byte, opts ImportOptions) (*types.Book, error) {
	if err := document.DetectPDF(payload); err != nil {
		return nil, err
	}
	if im.opener == nil {
		return nil, fmt.Errorf("%w: no document opener configured", types.ErrConfiguration)
	}
	progress := monotonic(opts.OnProgress)

	progress("Reading PDF metadata...", 5)
	src, err := im.opener.Open(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	md, err := src.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if md.PageCount < 1 {
		return nil, fmt.Errorf("%w: document has no pages", types.ErrInvalidDocument)
	}

	progress("Detecting table of contents...", 10)
	var groups []outline.Group
	if opts.UseNativeOutline {
		groups = im.readOutline(ctx, src, md.PageCount)
	}

	book := &types.Book{
		ID:               uuid.NewString(),
		Title:            firstNonEmpty(opts.Title, md.Title, "Untitled"),
		Author:           firstNonEmpty(opts.Author, md.Author),
		TotalPages:       md.PageCount,
		StructureSource:  types.SourceAI,
		ProcessingStatus: types.StatusPending,
		CreatedAt:        im.now(),
	}
	if len(groups) > 0 {
		book.StructureSource = types.SourceNative
	}
	if err := im.store.CreateBook(ctx, book, payload); err != nil {
		return nil, err
	}
	log := im.logger.With("book_id", book.ID)

	if err := im.buildStructure(ctx, book, groups, src, progress); err != nil {
		log.Error("import failed", "error", err)
		if serr := im.store.UpdateBookStatus(context.WithoutCancel(ctx), book.ID, types.StatusError); serr != nil {
			log.Warn("failed to mark book as errored", "error", serr)
		}
		book.ProcessingStatus = types.StatusError
		return book, err
	}

	log.Info("imported book",
		"title", book.Title,
		"pages", book.TotalPages,
		"source", book.StructureSource,
		"status", book.ProcessingStatus,
	)
	progress("Done!", 100)
	return book, nil
}

// readOutline returns the normalized outline, or nil when the document has
// none or it cannot be used.
func (im *Importer) readOutline(ctx context.Context, src document.Source, pages int) []outline.Group {
	nodes, err := src.Outline(ctx)
	if err != nil {
		im.logger.Warn("outline unreadable, falling back to AI structuring", "error", err)
		return nil
	}
	nodes, err = outline.Validate(nodes, pages)
	if err != nil {
		im.logger.Warn("outline rejected, falling back to AI structuring", "error", err)
		return nil
	}
	return outline.Normalize(nodes)
}

func (im *Importer) buildStructure(ctx context.Context, book *types.Book, groups []outline.Group, src document.Source, progress func(string, int)) error {
	if len(groups) == 0 {
		resolved := DefaultChapters(book.TotalPages, im.batchSize)
		chapters, _ := im.records(book.ID, resolved, nil)
		return im.store.CreateStructure(ctx, chapters, nil)
	}

	if err := im.store.UpdateBookStatus(ctx, book.ID, types.StatusProcessing); err != nil {
		return err
	}
	book.ProcessingStatus = types.StatusProcessing

	progress("Building structure...", 15)
	resolved := ResolveRanges(groups, book.TotalPages)

	texts := make([]PageTexts, len(resolved))
	for ci, ch := range resolved {
		pct := 15 + int(math.Round(float64(ci)/float64(len(resolved))*80))
		progress(fmt.Sprintf("Extracting text: %s", ch.Title), pct)
		pt, err := ExtractPageTexts(ctx, src, ch.StartPage, ch.EndPage)
		if err != nil {
			return err
		}
		texts[ci] = pt
	}

	chapters, sections := im.records(book.ID, resolved, texts)
	if err := im.store.CreateStructure(ctx, chapters, sections); err != nil {
		return err
	}
	if err := im.store.UpdateBookStatus(ctx, book.ID, types.StatusComplete); err != nil {
		return err
	}
	book.ProcessingStatus = types.StatusComplete
	return nil
}

// records assigns ids and orders. Section orders run 1..N across the book.
func (im *Importer) records(bookID string, resolved []ResolvedChapter, texts []PageTexts) ([]types.Chapter, []types.Section) {
	chapters := make([]types.Chapter, 0, len(resolved))
	var sections []types.Section
	for ci, rc := range resolved {
		ch := types.Chapter{
			ID:        uuid.NewString(),
			BookID:    bookID,
			Title:     rc.Title,
			Order:     ci + 1,
			StartPage: rc.StartPage,
			EndPage:   rc.EndPage,
		}
		chapters = append(chapters, ch)
		for _, rs := range rc.Sections {
			sec := types.Section{
				ID:        uuid.NewString(),
				ChapterID: ch.ID,
				BookID:    bookID,
				Title:     rs.Title,
				Order:     len(sections) + 1,
				StartPage: rs.StartPage,
				EndPage:   rs.EndPage,
			}
			if texts != nil {
				sec.ExtractedText = texts[ci].Bind(rs.StartPage, rs.EndPage)
			}
			sections = append(sections, sec)
		}
	}
	return chapters, sections
}

// monotonic wraps fn so reported percentages never go down.
func monotonic(fn func(string, int)) func(string, int) {
	last := 0
	return func(msg string, pct int) {
		pct = max(pct, last)
		last = pct
		if fn != nil {
			fn(msg, pct)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package structure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bitbybit/internal/classify"
	"github.com/jackzampolin/bitbybit/internal/document"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// RestructurePolicy decides what ProcessChapter does with a chapter that
// already has sections.
type RestructurePolicy string

const (
	// PolicySkip leaves structured chapters alone.
	PolicySkip RestructurePolicy = "skip"
	// PolicyReplace discards the chapter's sections and splits it again.
	PolicyReplace RestructurePolicy = "replace"
)

// Valid reports whether p is a known policy.
func (p RestructurePolicy) Valid() bool {
	return p == PolicySkip || p == PolicyReplace
}

const (
	defaultClaimTTL = 10 * time.Minute
	mergedTitleSep  = " / "
)

// SplitterConfig configures a Splitter.
type SplitterConfig struct {
	Store      store.Store
	Classifier classify.Classifier // nil makes every run fail with types.ErrConfiguration
	Opener     document.Opener
	Policy     RestructurePolicy // default PolicySkip
	ClaimTTL   time.Duration     // default 10m
	Logger     *slog.Logger
}

// Splitter turns provisional chapters into classified sections, one
// chapter per classifier call.
type Splitter struct {
	store      store.Store
	classifier classify.Classifier
	opener     document.Opener
	policy     RestructurePolicy
	claimTTL   time.Duration
	logger     *slog.Logger
}

// NewSplitter creates a Splitter.
func NewSplitter(cfg SplitterConfig) *Splitter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = PolicySkip
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	return &Splitter{
		store:      cfg.Store,
		classifier: cfg.Classifier,
		opener:     cfg.Opener,
		policy:     cfg.Policy,
		claimTTL:   cfg.ClaimTTL,
		logger:     cfg.Logger,
	}
}

// ChapterResult reports what happened to one chapter.
type ChapterResult struct {
	ChapterID string `json:"chapter_id"`
	Sections  int    `json:"sections"`
	Skipped   bool   `json:"skipped"`
}

// ProcessOptions configures ProcessAllChapters.
type ProcessOptions struct {
	// PriorityChapterID is processed before the others when set.
	PriorityChapterID string

	// OnChapter is called after every chapter, processed or skipped.
	OnChapter func(processed, total int)

	// OnProgress receives a human readable message and a percentage.
	OnProgress func(message string, percent int)
}

// ProcessChapter splits one chapter into sections. Under PolicySkip a
// chapter that already has sections is left alone and reported as skipped.
func (s *Splitter) ProcessChapter(ctx context.Context, bookID, chapterID string) (ChapterResult, error) {
	if s.classifier == nil {
		return ChapterResult{}, fmt.Errorf("%w: no section classifier configured", types.ErrConfiguration)
	}
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return ChapterResult{}, err
	}
	chapter, err := s.chapterOf(ctx, bookID, chapterID)
	if err != nil {
		return ChapterResult{}, err
	}

	src, err := s.open(ctx, bookID)
	if err != nil {
		return ChapterResult{}, err
	}
	defer src.Close()

	res, err := s.processChapter(ctx, book, chapter, src, s.policy == PolicyReplace)
	if err != nil || res.Skipped {
		return res, err
	}
	return res, s.completeIfStructured(ctx, bookID)
}

// completeIfStructured marks the book complete once every chapter owns at
// least one section.
func (s *Splitter) completeIfStructured(ctx context.Context, bookID string) error {
	chapters, err := s.store.ListChapters(ctx, bookID)
	if err != nil {
		return err
	}
	for _, ch := range chapters {
		n, err := s.store.CountSections(ctx, ch.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return s.store.UpdateBookStatus(ctx, bookID, types.StatusComplete)
}

// ProcessAllChapters splits every chapter of a book that has no sections
// yet, sequentially, the priority chapter first. The first failure stops
// the run and leaves the book in processing. When every chapter is done the
// book is marked complete.
func (s *Splitter) ProcessAllChapters(ctx context.Context, bookID string, opts ProcessOptions) error {
	if s.classifier == nil {
		return fmt.Errorf("%w: no section classifier configured", types.ErrConfiguration)
	}
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	chapters, err := s.store.ListChapters(ctx, bookID)
	if err != nil {
		return err
	}
	chapters = priorityFirst(chapters, opts.PriorityChapterID)

	src, err := s.open(ctx, bookID)
	if err != nil {
		return err
	}
	defer src.Close()

	total := len(chapters)
	for i := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		ch := &chapters[i]
		if opts.OnProgress != nil {
			opts.OnProgress(fmt.Sprintf("Structuring: %s", ch.Title), i*100/total)
		}

		res, err := s.processChapter(ctx, book, ch, src, false)
		if err != nil {
			s.logger.Error("chapter structuring failed",
				"book_id", bookID, "chapter_id", ch.ID, "error", err)
			return fmt.Errorf("chapter %q: %w", ch.Title, err)
		}
		if opts.OnChapter != nil {
			opts.OnChapter(i+1, total)
		}
		s.logger.Info("chapter structured",
			"book_id", bookID,
			"chapter_id", ch.ID,
			"sections", res.Sections,
			"skipped", res.Skipped,
			"processed", i+1,
			"total", total,
		)
	}

	if err := s.store.UpdateBookStatus(ctx, bookID, types.StatusComplete); err != nil {
		return err
	}
	if opts.OnProgress != nil {
		opts.OnProgress("Done!", 100)
	}
	return nil
}

func (s *Splitter) processChapter(ctx context.Context, book *types.Book, ch *types.Chapter, src document.Source, replace bool) (ChapterResult, error) {
	res := ChapterResult{ChapterID: ch.ID}

	owner := uuid.NewString()
	ok, err := s.store.ClaimChapter(ctx, ch.ID, owner, s.claimTTL)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, fmt.Errorf("chapter %s: %w", ch.ID, types.ErrChapterBusy)
	}
	defer func() {
		// The claim must be dropped even when ctx is already cancelled.
		if err := s.store.ReleaseChapter(context.WithoutCancel(ctx), ch.ID, owner); err != nil {
			s.logger.Warn("failed to release chapter claim", "chapter_id", ch.ID, "error", err)
		}
	}()

	existing, err := s.store.CountSections(ctx, ch.ID)
	if err != nil {
		return res, err
	}
	if existing > 0 && !replace {
		res.Skipped = true
		res.Sections = existing
		return res, nil
	}

	images := make([][]byte, 0, ch.PageCount())
	for p := ch.StartPage; p <= ch.EndPage; p++ {
		img, err := src.RenderPage(ctx, p)
		if err != nil {
			return res, fmt.Errorf("render page %d: %w", p, err)
		}
		images = append(images, img)
	}
	texts, err := ExtractPageTexts(ctx, src, ch.StartPage, ch.EndPage)
	if err != nil {
		return res, err
	}

	last, err := s.store.LastSection(ctx, book.ID)
	if err != nil {
		return res, err
	}
	var previousTitle *string
	baseOrder := 0
	if last != nil {
		previousTitle = &last.Title
		baseOrder = last.Order
	}

	result, err := s.classifier.SplitPagesIntoSections(ctx, classify.Request{
		PageImages:           images,
		PageTexts:            texts.Texts,
		StartPage:            ch.StartPage,
		BookTitle:            book.Title,
		PreviousSectionTitle: previousTitle,
		BookID:               book.ID,
		ChapterID:            ch.ID,
	})
	// Rejected credentials and cancellation leave the book untouched.
	if err != nil && (errors.Is(err, types.ErrConfiguration) || ctx.Err() != nil) {
		return res, err
	}
	if book.ProcessingStatus != types.StatusComplete {
		if serr := s.store.UpdateBookStatus(ctx, book.ID, types.StatusProcessing); serr != nil {
			return res, serr
		}
	}
	if err != nil {
		return res, err
	}
	if result == nil {
		return res, fmt.Errorf("%w: empty classifier result", types.ErrMalformedResponse)
	}

	spans, err := NormalizeCandidates(result.Sections, ch.StartPage, ch.EndPage)
	if err != nil {
		return res, err
	}

	sections := make([]types.Section, len(spans))
	for i, span := range spans {
		sections[i] = types.Section{
			ID:            uuid.NewString(),
			ChapterID:     ch.ID,
			BookID:        book.ID,
			Title:         span.Title,
			Order:         baseOrder + i + 1,
			StartPage:     span.StartPage,
			EndPage:       span.EndPage,
			ExtractedText: texts.Bind(span.StartPage, span.EndPage),
		}
	}
	if err := s.store.InsertChapterSections(ctx, ch.ID, sections, replace); err != nil {
		return res, err
	}
	res.Sections = len(sections)
	return res, nil
}

// NormalizeCandidates checks classifier output against the chapter range
// [start, end] and turns it into sections that tile the range: candidates
// are sorted by start page, candidates sharing a start page are merged, the
// first section is pulled back to the chapter start and each section ends
// one page before the next begins.
func NormalizeCandidates(candidates []classify.CandidateSection, start, end int) ([]ResolvedSection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: classifier returned no sections", types.ErrMalformedResponse)
	}
	cands := make([]classify.CandidateSection, len(candidates))
	for i, c := range candidates {
		c.Title = strings.TrimSpace(c.Title)
		switch {
		case c.Title == "":
			return nil, fmt.Errorf("%w: section %d has no title", types.ErrMalformedResponse, i+1)
		case c.StartPage > c.EndPage:
			return nil, fmt.Errorf("%w: section %q starts on page %d after it ends on page %d",
				types.ErrMalformedResponse, c.Title, c.StartPage, c.EndPage)
		case c.StartPage < start || c.EndPage > end:
			return nil, fmt.Errorf("%w: section %q pages %d-%d fall outside chapter pages %d-%d",
				types.ErrMalformedResponse, c.Title, c.StartPage, c.EndPage, start, end)
		}
		cands[i] = c
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].StartPage < cands[j].StartPage
	})

	var spans []ResolvedSection
	for _, c := range cands {
		if n := len(spans); n > 0 && spans[n-1].StartPage == c.StartPage {
			spans[n-1].Title += mergedTitleSep + c.Title
			continue
		}
		spans = append(spans, ResolvedSection{Title: c.Title, StartPage: c.StartPage})
	}

	spans[0].StartPage = start
	for i := range spans {
		if i+1 < len(spans) {
			spans[i].EndPage = spans[i+1].StartPage - 1
		} else {
			spans[i].EndPage = end
		}
	}
	return spans, nil
}

func (s *Splitter) chapterOf(ctx context.Context, bookID, chapterID string) (*types.Chapter, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.BookID != bookID {
		return nil, fmt.Errorf("chapter %s in book %s: %w", chapterID, bookID, types.ErrNotFound)
	}
	return chapter, nil
}

func (s *Splitter) open(ctx context.Context, bookID string) (document.Source, error) {
	if s.opener == nil {
		return nil, fmt.Errorf("%w: no document opener configured", types.ErrConfiguration)
	}
	payload, err := s.store.BookPayload(ctx, bookID)
	if err != nil {
		return nil, err
	}
	src, err := s.opener.Open(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("open book %s: %w", bookID, err)
	}
	return src, nil
}

// priorityFirst moves the chapter with id to the front, keeping the rest
// in order. An unknown id leaves the list unchanged.
func priorityFirst(chapters []types.Chapter, id string) []types.Chapter {
	if id == "" {
		return chapters
	}
	for i, ch := range chapters {
		if ch.ID != id {
			continue
		}
		out := make([]types.Chapter, 0, len(chapters))
		out = append(out, ch)
		out = append(out, chapters[:i]...)
		return append(out, chapters[i+1:]...)
	}
	return chapters
}

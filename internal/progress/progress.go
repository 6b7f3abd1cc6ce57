// Package progress computes how much of a book, chapter or library has
// been read.
package progress

import (
	"context"
	"fmt"

	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Progress is a read count over a set of sections.
type Progress struct {
	Read       int `json:"read"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Percentage returns read/total as a whole percent rounded half up, or 0
// when total is 0.
func Percentage(read, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*read + total) / (2 * total)
}

// Of counts the read sections in sections.
func Of(sections []types.Section) Progress {
	read := 0
	for _, s := range sections {
		if s.IsRead {
			read++
		}
	}
	return newProgress(read, len(sections))
}

func newProgress(read, total int) Progress {
	return Progress{Read: read, Total: total, Percentage: Percentage(read, total)}
}

// ChapterProgress is one chapter's line in a Breakdown.
type ChapterProgress struct {
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
	Order     int    `json:"order"`
	Progress
}

// Breakdown is a book's progress with one entry per chapter.
type Breakdown struct {
	BookID   string            `json:"book_id"`
	Book     Progress          `json:"book"`
	Chapters []ChapterProgress `json:"chapters"`
}

// BookSummary is one book's line in a Library summary.
type BookSummary struct {
	BookID           string                 `json:"book_id"`
	Title            string                 `json:"title"`
	ProcessingStatus types.ProcessingStatus `json:"processing_status"`
	Progress
}

// Library sums progress over every book.
type Library struct {
	Books         []BookSummary `json:"books"`
	Total         Progress      `json:"total"`
	BooksFinished int           `json:"books_finished"`
}

// Query reads progress from a store.
type Query struct {
	store store.Store
}

// NewQuery creates a Query.
func NewQuery(st store.Store) *Query {
	return &Query{store: st}
}

// Book returns the progress of every section of a book.
func (q *Query) Book(ctx context.Context, bookID string) (Progress, error) {
	if _, err := q.store.GetBook(ctx, bookID); err != nil {
		return Progress{}, err
	}
	sections, err := q.store.ListSectionsByBook(ctx, bookID)
	if err != nil {
		return Progress{}, err
	}
	return Of(sections), nil
}

// Chapter returns the progress of a chapter's sections.
func (q *Query) Chapter(ctx context.Context, chapterID string) (Progress, error) {
	if _, err := q.store.GetChapter(ctx, chapterID); err != nil {
		return Progress{}, err
	}
	sections, err := q.store.ListSectionsByChapter(ctx, chapterID)
	if err != nil {
		return Progress{}, err
	}
	return Of(sections), nil
}

// Breakdown reads the book's sections once and splits them by chapter, so
// the chapter read counts always add up to the book's.
func (q *Query) Breakdown(ctx context.Context, bookID string) (*Breakdown, error) {
	if _, err := q.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	chapters, err := q.store.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	sections, err := q.store.ListSectionsByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	byChapter := make(map[string][]types.Section, len(chapters))
	for _, s := range sections {
		byChapter[s.ChapterID] = append(byChapter[s.ChapterID], s)
	}

	b := &Breakdown{
		BookID:   bookID,
		Book:     Of(sections),
		Chapters: make([]ChapterProgress, 0, len(chapters)),
	}
	for _, ch := range chapters {
		b.Chapters = append(b.Chapters, ChapterProgress{
			ChapterID: ch.ID,
			Title:     ch.Title,
			Order:     ch.Order,
			Progress:  Of(byChapter[ch.ID]),
		})
	}
	return b, nil
}

// Library summarizes every book in the store, most recently read first.
func (q *Query) Library(ctx context.Context) (*Library, error) {
	books, err := q.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	lib := &Library{Books: make([]BookSummary, 0, len(books))}
	read, total := 0, 0
	for _, b := range books {
		sections, err := q.store.ListSectionsByBook(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("book %s: %w", b.ID, err)
		}
		p := Of(sections)
		lib.Books = append(lib.Books, BookSummary{
			BookID:           b.ID,
			Title:            b.Title,
			ProcessingStatus: b.ProcessingStatus,
			Progress:         p,
		})
		read += p.Read
		total += p.Total
		if p.Total > 0 && p.Read == p.Total {
			lib.BooksFinished++
		}
	}
	lib.Total = newProgress(read, total)
	return lib, nil
}

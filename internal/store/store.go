// Package store persists books, chapters and sections.
//
// Three implementations share the Store interface: an embedded SQLite store
// (the default), a PostgreSQL store for shared deployments, and an in-memory
// store used by tests and ephemeral servers. Every failure of the underlying
// database is wrapped with types.ErrStorage; lookups of unknown ids return
// types.ErrNotFound.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// BookStore persists book records and their raw payloads.
type BookStore interface {
	// CreateBook inserts a book together with its document payload.
	CreateBook(ctx context.Context, book *types.Book, payload []byte) error

	// GetBook returns a book by id.
	GetBook(ctx context.Context, id string) (*types.Book, error)

	// ListBooks returns every book, most recently read first. Books never
	// opened sort after the rest, newest import first.
	ListBooks(ctx context.Context) ([]types.Book, error)

	// BookPayload returns the raw document bytes of a book.
	BookPayload(ctx context.Context, id string) ([]byte, error)

	// UpdateBookStatus sets a book's processing status.
	UpdateBookStatus(ctx context.Context, id string, status types.ProcessingStatus) error

	// TouchBook records that a book was opened.
	TouchBook(ctx context.Context, id string, at time.Time) error

	// DeleteBook removes a book with its payload, chapters, sections and
	// claims in one transaction.
	DeleteBook(ctx context.Context, id string) error
}

// ChapterStore persists chapters.
type ChapterStore interface {
	// CreateStructure inserts chapters and their sections in one transaction.
	CreateStructure(ctx context.Context, chapters []types.Chapter, sections []types.Section) error

	// GetChapter returns a chapter by id.
	GetChapter(ctx context.Context, id string) (*types.Chapter, error)

	// ListChapters returns a book's chapters by ascending order.
	ListChapters(ctx context.Context, bookID string) ([]types.Chapter, error)

	// ClaimChapter takes an exclusive lease on a chapter for owner. It
	// returns false when another owner holds an unexpired lease.
	ClaimChapter(ctx context.Context, chapterID, owner string, ttl time.Duration) (bool, error)

	// ReleaseChapter drops owner's lease on a chapter.
	ReleaseChapter(ctx context.Context, chapterID, owner string) error
}

// SectionStore persists sections and their read state.
type SectionStore interface {
	// InsertChapterSections writes a chapter's sections in one transaction.
	// With replace set, the chapter's existing sections are removed first.
	// Section orders across the book are re-sequenced 1..N in reading order
	// (chapter order, then section order) before the transaction commits.
	InsertChapterSections(ctx context.Context, chapterID string, sections []types.Section, replace bool) error

	// GetSection returns a section by id.
	GetSection(ctx context.Context, id string) (*types.Section, error)

	// ListSectionsByChapter returns a chapter's sections by ascending order.
	ListSectionsByChapter(ctx context.Context, chapterID string) ([]types.Section, error)

	// ListSectionsByBook returns a book's sections by ascending order.
	ListSectionsByBook(ctx context.Context, bookID string) ([]types.Section, error)

	// CountSections returns how many sections a chapter owns.
	CountSections(ctx context.Context, chapterID string) (int, error)

	// LastSection returns the book's section with the highest order, or nil
	// when the book has none.
	LastSection(ctx context.Context, bookID string) (*types.Section, error)

	// MarkSectionRead sets the read flag. An already-read section keeps its
	// original read time.
	MarkSectionRead(ctx context.Context, id string, at time.Time) error

	// MarkSectionUnread clears the read flag and read time.
	MarkSectionUnread(ctx context.Context, id string) error

	// UpdateSectionPosition records where the reader stopped. Nil values
	// leave the stored field unchanged.
	UpdateSectionPosition(ctx context.Context, id string, lastPage *int, scroll *float64) error
}

// CallStore persists model call records. Calls outlive the books they
// reference.
type CallStore interface {
	// CreateLLMCall inserts a call record.
	CreateLLMCall(ctx context.Context, call *llmcall.Call) error

	// GetLLMCall returns a call by id.
	GetLLMCall(ctx context.Context, id string) (*llmcall.Call, error)

	// ListLLMCalls returns calls matching filter, newest first.
	ListLLMCalls(ctx context.Context, filter llmcall.Filter) ([]llmcall.Call, error)
}

// Store is the full persistence surface.
type Store interface {
	BookStore
	ChapterStore
	SectionStore
	CallStore

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, types.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}

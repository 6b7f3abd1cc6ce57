package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Memory implements Store with in-memory maps. It backs tests and servers
// started with the "memory" driver; nothing survives a restart.
// Error injection is supported for testing error handling paths.
type Memory struct {
	mu sync.RWMutex

	books    map[string]types.Book
	payloads map[string][]byte
	chapters map[string]types.Chapter
	sections map[string]types.Section
	claims   map[string]claim
	calls    map[string]llmcall.Call

	// --- Error injection fields for testing ---

	// WriteErr is returned by every write when non-nil.
	WriteErr error

	// InsertSectionsErr is returned by InsertChapterSections when non-nil.
	InsertSectionsErr error

	// MarkReadErr is returned by MarkSectionRead when non-nil.
	MarkReadErr error

	// MarkReadFailures makes the next N MarkSectionRead calls fail.
	MarkReadFailures int

	// now overrides the clock used for claim expiry.
	now func() time.Time
}

type claim struct {
	owner   string
	expires time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		books:    make(map[string]types.Book),
		payloads: make(map[string][]byte),
		chapters: make(map[string]types.Chapter),
		sections: make(map[string]types.Section),
		claims:   make(map[string]claim),
		calls:    make(map[string]llmcall.Call),
		now:      time.Now,
	}
}

func (m *Memory) writeErr(op string) error {
	if m.WriteErr != nil {
		return storageErr(op, m.WriteErr)
	}
	return nil
}

// CreateBook stores a copy of the book and payload.
func (m *Memory) CreateBook(_ context.Context, book *types.Book, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("create book"); err != nil {
		return err
	}
	m.books[book.ID] = *book
	m.payloads[book.ID] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) GetBook(_ context.Context, id string) (*types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, notFound("book", id)
	}
	return &b, nil
}

func (m *Memory) ListBooks(_ context.Context) ([]types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := make([]types.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		a, b := books[i], books[j]
		switch {
		case a.LastReadAt != nil && b.LastReadAt != nil:
			return a.LastReadAt.After(*b.LastReadAt)
		case a.LastReadAt != nil:
			return true
		case b.LastReadAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return books, nil
}

func (m *Memory) BookPayload(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payloads[id]
	if !ok {
		return nil, notFound("book", id)
	}
	return p, nil
}

func (m *Memory) UpdateBookStatus(_ context.Context, id string, status types.ProcessingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("update book status"); err != nil {
		return err
	}
	b, ok := m.books[id]
	if !ok {
		return notFound("book", id)
	}
	b.ProcessingStatus = status
	m.books[id] = b
	return nil
}

func (m *Memory) TouchBook(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("touch book"); err != nil {
		return err
	}
	b, ok := m.books[id]
	if !ok {
		return notFound("book", id)
	}
	b.LastReadAt = &at
	m.books[id] = b
	return nil
}

func (m *Memory) DeleteBook(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("delete book"); err != nil {
		return err
	}
	if _, ok := m.books[id]; !ok {
		return notFound("book", id)
	}
	for sid, s := range m.sections {
		if s.BookID == id {
			delete(m.sections, sid)
		}
	}
	for cid, c := range m.chapters {
		if c.BookID == id {
			delete(m.chapters, cid)
			delete(m.claims, cid)
		}
	}
	delete(m.payloads, id)
	delete(m.books, id)
	return nil
}

func (m *Memory) CreateStructure(_ context.Context, chapters []types.Chapter, sections []types.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("create structure"); err != nil {
		return err
	}
	for _, c := range chapters {
		if _, ok := m.books[c.BookID]; !ok {
			return notFound("book", c.BookID)
		}
	}
	for _, c := range chapters {
		m.chapters[c.ID] = c
	}
	for _, s := range sections {
		m.sections[s.ID] = s
	}
	return nil
}

func (m *Memory) GetChapter(_ context.Context, id string) (*types.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chapters[id]
	if !ok {
		return nil, notFound("chapter", id)
	}
	return &c, nil
}

func (m *Memory) ListChapters(_ context.Context, bookID string) ([]types.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chapters []types.Chapter
	for _, c := range m.chapters {
		if c.BookID == bookID {
			chapters = append(chapters, c)
		}
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })
	return chapters, nil
}

func (m *Memory) ClaimChapter(_ context.Context, chapterID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chapters[chapterID]; !ok {
		return false, notFound("chapter", chapterID)
	}
	now := m.now()
	if c, ok := m.claims[chapterID]; ok && c.owner != owner && now.Before(c.expires) {
		return false, nil
	}
	m.claims[chapterID] = claim{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *Memory) ReleaseChapter(_ context.Context, chapterID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[chapterID]; ok && c.owner == owner {
		delete(m.claims, chapterID)
	}
	return nil
}

func (m *Memory) InsertChapterSections(_ context.Context, chapterID string, sections []types.Section, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertSectionsErr != nil {
		return storageErr("insert sections", m.InsertSectionsErr)
	}
	if err := m.writeErr("insert sections"); err != nil {
		return err
	}
	ch, ok := m.chapters[chapterID]
	if !ok {
		return notFound("chapter", chapterID)
	}
	if replace {
		for id, s := range m.sections {
			if s.ChapterID == chapterID {
				delete(m.sections, id)
			}
		}
	}
	for _, s := range sections {
		m.sections[s.ID] = s
	}
	m.resequence(ch.BookID)
	return nil
}

// resequence renumbers a book's sections 1..N in reading order.
func (m *Memory) resequence(bookID string) {
	var list []types.Section
	for _, s := range m.sections {
		if s.BookID == bookID {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ci, cj := m.chapters[list[i].ChapterID].Order, m.chapters[list[j].ChapterID].Order
		if ci != cj {
			return ci < cj
		}
		return list[i].Order < list[j].Order
	})
	for i, s := range list {
		s.Order = i + 1
		m.sections[s.ID] = s
	}
}

func (m *Memory) GetSection(_ context.Context, id string) (*types.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, notFound("section", id)
	}
	return &s, nil
}

func (m *Memory) ListSectionsByChapter(_ context.Context, chapterID string) ([]types.Section, error) {
	return m.filterSections(func(s types.Section) bool { return s.ChapterID == chapterID }), nil
}

func (m *Memory) ListSectionsByBook(_ context.Context, bookID string) ([]types.Section, error) {
	return m.filterSections(func(s types.Section) bool { return s.BookID == bookID }), nil
}

func (m *Memory) filterSections(keep func(types.Section) bool) []types.Section {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Section
	for _, s := range m.sections {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (m *Memory) CountSections(_ context.Context, chapterID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sections {
		if s.ChapterID == chapterID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) LastSection(_ context.Context, bookID string) (*types.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last *types.Section
	for _, s := range m.sections {
		if s.BookID != bookID {
			continue
		}
		if last == nil || s.Order > last.Order {
			s := s
			last = &s
		}
	}
	return last, nil
}

var errInjectedMarkRead = errors.New("injected mark read failure")

func (m *Memory) MarkSectionRead(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkReadErr != nil {
		return storageErr("mark read", m.MarkReadErr)
	}
	if m.MarkReadFailures > 0 {
		m.MarkReadFailures--
		return storageErr("mark read", errInjectedMarkRead)
	}
	if err := m.writeErr("mark read"); err != nil {
		return err
	}
	s, ok := m.sections[id]
	if !ok {
		return notFound("section", id)
	}
	s.MarkRead(at)
	m.sections[id] = s
	return nil
}

func (m *Memory) MarkSectionUnread(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("mark unread"); err != nil {
		return err
	}
	s, ok := m.sections[id]
	if !ok {
		return notFound("section", id)
	}
	s.MarkUnread()
	m.sections[id] = s
	return nil
}

func (m *Memory) UpdateSectionPosition(_ context.Context, id string, lastPage *int, scroll *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("update position"); err != nil {
		return err
	}
	s, ok := m.sections[id]
	if !ok {
		return notFound("section", id)
	}
	if lastPage != nil {
		p := *lastPage
		s.LastPageViewed = &p
	}
	if scroll != nil {
		v := *scroll
		s.ScrollProgress = &v
	}
	m.sections[id] = s
	return nil
}

func (m *Memory) CreateLLMCall(_ context.Context, call *llmcall.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("create llm call"); err != nil {
		return err
	}
	m.calls[call.ID] = *call
	return nil
}

func (m *Memory) GetLLMCall(_ context.Context, id string) (*llmcall.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.calls[id]
	if !ok {
		return nil, notFound("llm call", id)
	}
	return &c, nil
}

func (m *Memory) ListLLMCalls(_ context.Context, filter llmcall.Filter) ([]llmcall.Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []llmcall.Call
	for _, c := range m.calls {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)

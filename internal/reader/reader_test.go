package reader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jackzampolin/bitbybit/internal/tracking"
	"github.com/jackzampolin/bitbybit/internal/types"
)

type fakeClient struct {
	mu         sync.Mutex
	chapters   []Chapter
	sectionErr error
}

func text(s string) *string { return &s }

func newFakeClient() *fakeClient {
	long := strings.Repeat("a line of a long section\n", 100)
	return &fakeClient{chapters: []Chapter{
		{
			Chapter: types.Chapter{ID: "c1", Title: "Chapter One", Order: 1},
			Sections: []types.Section{
				{ID: "s1", ChapterID: "c1", Title: "Opening", Order: 1, IsRead: true, ExtractedText: text("short")},
				{ID: "s2", ChapterID: "c1", Title: "Middle", Order: 2, ExtractedText: text(long)},
			},
		},
		{
			Chapter: types.Chapter{ID: "c2", Title: "Chapter Two", Order: 2},
			Sections: []types.Section{
				{ID: "s3", ChapterID: "c2", Title: "End", Order: 3, ExtractedText: text("the end")},
			},
		},
	}}
}

func (f *fakeClient) find(id string) (*types.Section, error) {
	for ci := range f.chapters {
		for si := range f.chapters[ci].Sections {
			if f.chapters[ci].Sections[si].ID == id {
				return &f.chapters[ci].Sections[si], nil
			}
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeClient) OpenBook(context.Context, string) (*types.Book, error) {
	return &types.Book{ID: "b1"}, nil
}

func (f *fakeClient) Chapters(context.Context, string) ([]Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Chapter, len(f.chapters))
	for i, ch := range f.chapters {
		out[i] = ch
		out[i].Sections = append([]types.Section(nil), ch.Sections...)
	}
	return out, nil
}

func (f *fakeClient) Section(_ context.Context, id string) (*types.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sectionErr != nil {
		return nil, f.sectionErr
	}
	s, err := f.find(id)
	if err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (f *fakeClient) setRead(id string, read bool) (*types.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.find(id)
	if err != nil {
		return nil, err
	}
	s.IsRead = read
	cp := *s
	return &cp, nil
}

func (f *fakeClient) MarkRead(_ context.Context, id string) (*types.Section, error) {
	return f.setRead(id, true)
}

func (f *fakeClient) MarkUnread(_ context.Context, id string) (*types.Section, error) {
	return f.setRead(id, false)
}

func (f *fakeClient) MarkSectionRead(ctx context.Context, id string, _ time.Time) error {
	_, err := f.MarkRead(ctx, id)
	return err
}

func (f *fakeClient) TrackingConfig(context.Context) (tracking.Config, error) {
	return tracking.Config{Mode: tracking.ModeScroll}, nil
}

func newTestModel(t *testing.T, fc *fakeClient) Model {
	t.Helper()
	tr := tracking.NewTracker(tracking.TrackerConfig{
		Config: tracking.Config{Mode: tracking.ModeScroll},
		Marker: tracking.NewRetryMarker(fc, tracking.RetryOptions{Attempts: 1}),
	})
	return New(context.Background(), Options{Client: fc, Tracker: tr, BookID: "b1"})
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return step(t, m, cmd())
}

func loaded(t *testing.T, fc *fakeClient) Model {
	t.Helper()
	m := newTestModel(t, fc)
	m, cmd := step(t, m, m.load()())
	m, _ = run(t, m, cmd)
	return m
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestReader_OpensFirstUnreadSection(t *testing.T) {
	m := loaded(t, newFakeClient())
	if m.section == nil || m.section.ID != "s2" {
		t.Fatalf("opened %v, want s2", m.section)
	}
	if m.sub == nil || !m.sub.Active() {
		t.Fatal("long section should have an active subscription")
	}
	if read, total := m.Progress(); read != 1 || total != 3 {
		t.Errorf("Progress() = %d/%d, want 1/3", read, total)
	}
	if v := m.View(); !strings.Contains(v, "Middle") || !strings.Contains(v, "Chapter One") {
		t.Errorf("View() missing titles:\n%s", v)
	}
}

func TestReader_StartSection(t *testing.T) {
	fc := newFakeClient()
	m := New(context.Background(), Options{Client: fc, BookID: "b1", SectionID: "s1"})
	m, cmd := step(t, m, m.load()())
	m, _ = run(t, m, cmd)
	if m.section.ID != "s1" {
		t.Errorf("opened %s, want s1", m.section.ID)
	}
	m.dispose()
}

func TestReader_NavigationDisposesSubscription(t *testing.T) {
	m := loaded(t, newFakeClient())
	prev := m.sub

	m, cmd := step(t, m, key("n"))
	m, _ = run(t, m, cmd)
	if m.section.ID != "s3" {
		t.Fatalf("after next: %s, want s3", m.section.ID)
	}
	if prev.Active() {
		t.Error("previous subscription still active after changing section")
	}

	m, cmd = step(t, m, key("n"))
	if cmd != nil {
		t.Error("next on the last section should do nothing")
	}

	m, cmd = step(t, m, key("p"))
	m, _ = run(t, m, cmd)
	if m.section.ID != "s2" {
		t.Errorf("after prev: %s, want s2", m.section.ID)
	}
	m.dispose()
}

func TestReader_ScrollToEndMarksRead(t *testing.T) {
	fc := newFakeClient()
	m := loaded(t, fc)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	if !m.sub.Active() {
		t.Fatal("fired before scrolling")
	}

	for i := 0; i < 20; i++ {
		m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	}
	if !m.sub.Fired() {
		t.Fatal("subscription did not fire at the end of the section")
	}

	select {
	case msg := <-m.events:
		m, _ = step(t, m, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no tracked message")
	}
	if !m.section.IsRead {
		t.Error("current section not marked read")
	}
	if read, _ := m.Progress(); read != 2 {
		t.Errorf("read = %d, want 2", read)
	}
	if s, _ := fc.Section(context.Background(), "s2"); !s.IsRead {
		t.Error("server side not marked read")
	}
}

func TestReader_ShortSectionFiresImmediately(t *testing.T) {
	fc := newFakeClient()
	m := newTestModel(t, fc)
	m.startID = "s3"
	m, cmd := step(t, m, m.load()())
	m, _ = run(t, m, cmd)

	select {
	case <-m.sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("short section was not marked")
	}
	if s, _ := fc.Section(context.Background(), "s3"); !s.IsRead {
		t.Error("s3 not marked read")
	}
}

func TestReader_ToggleRead(t *testing.T) {
	m := loaded(t, newFakeClient())

	m, cmd := step(t, m, key("m"))
	m, _ = run(t, m, cmd)
	if !m.section.IsRead || m.sub != nil {
		t.Fatalf("after manual mark: read=%v sub=%v", m.section.IsRead, m.sub)
	}

	m, cmd = step(t, m, key("m"))
	m, _ = run(t, m, cmd)
	if m.section.IsRead {
		t.Fatal("section still read after toggling again")
	}
	if m.sub == nil || !m.sub.Active() {
		t.Error("unread section should be tracked again")
	}
	m.dispose()
}

func TestReader_QuitDisposes(t *testing.T) {
	m := loaded(t, newFakeClient())
	sub := m.sub

	m, cmd := step(t, m, key("q"))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if sub.Active() || m.sub != nil {
		t.Error("subscription not disposed on quit")
	}
	if m.View() != "" {
		t.Error("View() should be empty after quitting")
	}
}

func TestReader_Errors(t *testing.T) {
	fc := newFakeClient()
	fc.sectionErr = errors.New("server down")
	m := newTestModel(t, fc)
	m, cmd := step(t, m, m.load()())
	m, _ = run(t, m, cmd)
	if m.err == nil || !strings.Contains(m.View(), "server down") {
		t.Errorf("error not shown: %q", m.View())
	}
}

func TestReader_EmptyBook(t *testing.T) {
	fc := &fakeClient{chapters: []Chapter{{Chapter: types.Chapter{ID: "c1", Title: "Pages 1-20"}}}}
	m := newTestModel(t, fc)
	m, cmd := step(t, m, m.load()())
	if cmd != nil {
		t.Error("no section should be fetched")
	}
	if !strings.Contains(m.View(), "no sections") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestAPIClient(t *testing.T) {
	var marked []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/books/b1/open", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "b1", "title": "Book", "progress": map[string]int{"read": 0}})
	})
	mux.HandleFunc("GET /api/books/b1/chapters", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"book_id": "b1", "chapters": []map[string]any{
			{"id": "c1", "title": "One", "sections": []map[string]any{{"id": "s1", "title": "First"}}},
		}})
	})
	mux.HandleFunc("GET /api/sections/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"section missing: not found"}`))
	})
	mux.HandleFunc("POST /api/sections/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		marked = append(marked, r.PathValue("id"))
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"id": r.PathValue("id"), "is_read": true})
	})
	mux.HandleFunc("GET /api/settings", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"settings":{"tracking":{"mode":"endofpage","threshold_seconds":3,"scroll_proximity":10}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	ctx := context.Background()

	book, err := c.OpenBook(ctx, "b1")
	if err != nil || book.Title != "Book" {
		t.Fatalf("OpenBook() = %+v, %v", book, err)
	}

	chapters, err := c.Chapters(ctx, "b1")
	if err != nil || len(chapters) != 1 || chapters[0].Title != "One" || len(chapters[0].Sections) != 1 {
		t.Fatalf("Chapters() = %+v, %v", chapters, err)
	}

	if _, err := c.Section(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Section(missing) error = %v, want ErrNotFound", err)
	}

	if err := c.MarkSectionRead(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("MarkSectionRead() error = %v", err)
	}
	mu.Lock()
	if len(marked) != 1 || marked[0] != "s1" {
		t.Errorf("marked = %v", marked)
	}
	mu.Unlock()

	cfg, err := c.TrackingConfig(ctx)
	if err != nil {
		t.Fatalf("TrackingConfig() error = %v", err)
	}
	if cfg.Mode != tracking.ModeScroll || cfg.Threshold != 3*time.Second || cfg.ScrollProximity != 10 {
		t.Errorf("TrackingConfig() = %+v", cfg)
	}
}

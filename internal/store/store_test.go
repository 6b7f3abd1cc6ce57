package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/bitbybit/internal/llmcall"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// runStoreSuite exercises the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("books", func(t *testing.T) { testBooks(t, open(t)) })
	t.Run("list order", func(t *testing.T) { testListOrder(t, open(t)) })
	t.Run("structure", func(t *testing.T) { testStructure(t, open(t)) })
	t.Run("resequence", func(t *testing.T) { testResequence(t, open(t)) })
	t.Run("read state", func(t *testing.T) { testReadState(t, open(t)) })
	t.Run("claims", func(t *testing.T) { testClaims(t, open(t)) })
	t.Run("delete cascade", func(t *testing.T) { testDeleteCascade(t, open(t)) })
	t.Run("llm calls", func(t *testing.T) { testLLMCalls(t, open(t)) })
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seedBook(t *testing.T, s Store, id string, pages int) *types.Book {
	t.Helper()
	b := &types.Book{
		ID:               id,
		Title:            "Book " + id,
		TotalPages:       pages,
		StructureSource:  types.SourceAI,
		ProcessingStatus: types.StatusPending,
		CreatedAt:        t0,
	}
	if err := s.CreateBook(context.Background(), b, []byte("%PDF-"+id)); err != nil {
		t.Fatalf("CreateBook(%s) error = %v", id, err)
	}
	return b
}

func seedChapters(t *testing.T, s Store, bookID string, ranges ...[2]int) []types.Chapter {
	t.Helper()
	var chapters []types.Chapter
	for i, r := range ranges {
		chapters = append(chapters, types.Chapter{
			ID:        bookID + "-ch" + string(rune('a'+i)),
			BookID:    bookID,
			Title:     "Chapter",
			Order:     i + 1,
			StartPage: r[0],
			EndPage:   r[1],
		})
	}
	if err := s.CreateStructure(context.Background(), chapters, nil); err != nil {
		t.Fatalf("CreateStructure error = %v", err)
	}
	return chapters
}

func section(id string, ch types.Chapter, order, start, end int) types.Section {
	return types.Section{
		ID:        id,
		ChapterID: ch.ID,
		BookID:    ch.BookID,
		Title:     "Section " + id,
		Order:     order,
		StartPage: start,
		EndPage:   end,
	}
}

func testBooks(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "b1", 20)

	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBook error = %v", err)
	}
	if got.Title != "Book b1" || got.TotalPages != 20 || got.ProcessingStatus != types.StatusPending {
		t.Errorf("GetBook = %+v", got)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
	}

	payload, err := s.BookPayload(ctx, "b1")
	if err != nil || string(payload) != "%PDF-b1" {
		t.Errorf("BookPayload = %q, %v", payload, err)
	}

	if err := s.UpdateBookStatus(ctx, "b1", types.StatusComplete); err != nil {
		t.Fatalf("UpdateBookStatus error = %v", err)
	}
	got, _ = s.GetBook(ctx, "b1")
	if got.ProcessingStatus != types.StatusComplete {
		t.Errorf("status = %s, want complete", got.ProcessingStatus)
	}

	if _, err := s.GetBook(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetBook(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateBookStatus(ctx, "missing", types.StatusComplete); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("UpdateBookStatus(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.BookPayload(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("BookPayload(missing) error = %v, want ErrNotFound", err)
	}
}

func testListOrder(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "never", 1)
	seedBook(t, s, "old", 1)
	seedBook(t, s, "recent", 1)

	if err := s.TouchBook(ctx, "old", t0.Add(time.Hour)); err != nil {
		t.Fatalf("TouchBook error = %v", err)
	}
	if err := s.TouchBook(ctx, "recent", t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("TouchBook error = %v", err)
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks error = %v", err)
	}
	want := []string{"recent", "old", "never"}
	if len(books) != len(want) {
		t.Fatalf("ListBooks returned %d books, want %d", len(books), len(want))
	}
	for i, id := range want {
		if books[i].ID != id {
			t.Errorf("books[%d] = %s, want %s", i, books[i].ID, id)
		}
	}
}

func testStructure(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "b1", 20)
	chapters := seedChapters(t, s, "b1", [2]int{1, 10}, [2]int{11, 20})

	list, err := s.ListChapters(ctx, "b1")
	if err != nil {
		t.Fatalf("ListChapters error = %v", err)
	}
	if len(list) != 2 || list[0].ID != chapters[0].ID || list[1].Order != 2 {
		t.Errorf("ListChapters = %+v", list)
	}

	if n, _ := s.CountSections(ctx, chapters[0].ID); n != 0 {
		t.Errorf("CountSections = %d, want 0", n)
	}
	last, err := s.LastSection(ctx, "b1")
	if err != nil || last != nil {
		t.Errorf("LastSection on empty book = %v, %v", last, err)
	}

	text := "page one"
	sec := section("s1", chapters[0], 1, 1, 10)
	sec.ExtractedText = &text
	if err := s.InsertChapterSections(ctx, chapters[0].ID, []types.Section{sec}, false); err != nil {
		t.Fatalf("InsertChapterSections error = %v", err)
	}

	got, err := s.GetSection(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSection error = %v", err)
	}
	if got.ExtractedText == nil || *got.ExtractedText != text || got.IsRead || got.ReadAt != nil {
		t.Errorf("GetSection = %+v", got)
	}
	if _, err := s.GetChapter(ctx, "nope"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetChapter(nope) error = %v", err)
	}
	if err := s.InsertChapterSections(ctx, "nope", nil, false); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("InsertChapterSections(nope) error = %v", err)
	}
}

func testResequence(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "b1", 30)
	chapters := seedChapters(t, s, "b1", [2]int{1, 10}, [2]int{11, 20}, [2]int{21, 30})

	// Chapter 2 is structured first, as a priority chapter would be.
	if err := s.InsertChapterSections(ctx, chapters[1].ID, []types.Section{
		section("b", chapters[1], 1, 11, 15),
		section("c", chapters[1], 2, 16, 20),
	}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertChapterSections(ctx, chapters[0].ID, []types.Section{
		section("a", chapters[0], 3, 1, 10),
	}, false); err != nil {
		t.Fatal(err)
	}

	sections, err := s.ListSectionsByBook(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"a", "b", "c"}
	for i, sec := range sections {
		if sec.ID != wantIDs[i] || sec.Order != i+1 {
			t.Errorf("sections[%d] = %s order %d, want %s order %d", i, sec.ID, sec.Order, wantIDs[i], i+1)
		}
	}

	last, err := s.LastSection(ctx, "b1")
	if err != nil || last == nil || last.ID != "c" {
		t.Errorf("LastSection = %v, %v; want c", last, err)
	}

	// Replacing chapter 2 keeps the book contiguous.
	if err := s.InsertChapterSections(ctx, chapters[1].ID, []types.Section{
		section("d", chapters[1], 9, 11, 20),
	}, true); err != nil {
		t.Fatal(err)
	}
	byChapter, _ := s.ListSectionsByChapter(ctx, chapters[1].ID)
	if len(byChapter) != 1 || byChapter[0].ID != "d" || byChapter[0].Order != 2 {
		t.Errorf("after replace chapter 2 = %+v", byChapter)
	}
	if n, _ := s.CountSections(ctx, chapters[1].ID); n != 1 {
		t.Errorf("CountSections after replace = %d, want 1", n)
	}
}

func testReadState(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "b1", 10)
	chapters := seedChapters(t, s, "b1", [2]int{1, 10})
	if err := s.InsertChapterSections(ctx, chapters[0].ID, []types.Section{section("s1", chapters[0], 1, 1, 10)}, false); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkSectionRead(ctx, "s1", t0); err != nil {
		t.Fatalf("MarkSectionRead error = %v", err)
	}
	if err := s.MarkSectionRead(ctx, "s1", t0.Add(time.Hour)); err != nil {
		t.Fatalf("second MarkSectionRead error = %v", err)
	}
	got, _ := s.GetSection(ctx, "s1")
	if !got.IsRead || got.ReadAt == nil || !got.ReadAt.Equal(t0) {
		t.Errorf("after marking read twice: IsRead=%v ReadAt=%v, want first time kept", got.IsRead, got.ReadAt)
	}

	if err := s.MarkSectionUnread(ctx, "s1"); err != nil {
		t.Fatalf("MarkSectionUnread error = %v", err)
	}
	got, _ = s.GetSection(ctx, "s1")
	if got.IsRead || got.ReadAt != nil {
		t.Errorf("after unread: IsRead=%v ReadAt=%v", got.IsRead, got.ReadAt)
	}

	page := 4
	if err := s.UpdateSectionPosition(ctx, "s1", &page, nil); err != nil {
		t.Fatal(err)
	}
	scroll := 42.5
	if err := s.UpdateSectionPosition(ctx, "s1", nil, &scroll); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetSection(ctx, "s1")
	if got.LastPageViewed == nil || *got.LastPageViewed != 4 || got.ScrollProgress == nil || *got.ScrollProgress != 42.5 {
		t.Errorf("position = %v / %v", got.LastPageViewed, got.ScrollProgress)
	}

	if err := s.MarkSectionRead(ctx, "missing", t0); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("MarkSectionRead(missing) error = %v, want ErrNotFound", err)
	}
}

func testClaims(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "b1", 10)
	chapters := seedChapters(t, s, "b1", [2]int{1, 10})
	id := chapters[0].ID

	ok, err := s.ClaimChapter(ctx, id, "run-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = s.ClaimChapter(ctx, id, "run-2", time.Minute)
	if err != nil || ok {
		t.Fatalf("competing claim = %v, %v; want refused", ok, err)
	}
	ok, err = s.ClaimChapter(ctx, id, "run-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("re-claim by owner = %v, %v", ok, err)
	}

	if err := s.ReleaseChapter(ctx, id, "run-2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ClaimChapter(ctx, id, "run-2", time.Minute); ok {
		t.Fatal("release by a non-owner freed the claim")
	}
	if err := s.ReleaseChapter(ctx, id, "run-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ClaimChapter(ctx, id, "run-2", time.Minute); !ok {
		t.Fatal("claim after release refused")
	}

	// An expired lease can be taken over.
	if err := s.ReleaseChapter(ctx, id, "run-2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ClaimChapter(ctx, id, "run-3", -time.Second); !ok {
		t.Fatal("claim with expired ttl refused")
	}
	if ok, _ := s.ClaimChapter(ctx, id, "run-4", time.Minute); !ok {
		t.Fatal("expired lease was not taken over")
	}

	if _, err := s.ClaimChapter(ctx, "missing", "run-1", time.Minute); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("ClaimChapter(missing) error = %v, want ErrNotFound", err)
	}
}

func testDeleteCascade(t *testing.T, s Store) {
	ctx := context.Background()
	seedBook(t, s, "gone", 10)
	seedBook(t, s, "kept", 10)
	gone := seedChapters(t, s, "gone", [2]int{1, 10})
	kept := seedChapters(t, s, "kept", [2]int{1, 10})
	for _, ch := range []types.Chapter{gone[0], kept[0]} {
		if err := s.InsertChapterSections(ctx, ch.ID, []types.Section{section(ch.ID+"-s", ch, 1, 1, 10)}, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ClaimChapter(ctx, gone[0].ID, "run", time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteBook(ctx, "gone"); err != nil {
		t.Fatalf("DeleteBook error = %v", err)
	}

	if _, err := s.GetBook(ctx, "gone"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("book survived delete: %v", err)
	}
	if _, err := s.BookPayload(ctx, "gone"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("payload survived delete: %v", err)
	}
	if chs, _ := s.ListChapters(ctx, "gone"); len(chs) != 0 {
		t.Errorf("%d chapters survived delete", len(chs))
	}
	if secs, _ := s.ListSectionsByBook(ctx, "gone"); len(secs) != 0 {
		t.Errorf("%d sections survived delete", len(secs))
	}

	if secs, _ := s.ListSectionsByBook(ctx, "kept"); len(secs) != 1 {
		t.Errorf("other book lost sections: %d left", len(secs))
	}
	if err := s.DeleteBook(ctx, "gone"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second DeleteBook error = %v, want ErrNotFound", err)
	}
}

func testLLMCalls(t *testing.T, s Store) {
	ctx := context.Background()
	calls := []llmcall.Call{
		{ID: "call-1", Timestamp: t0, BookID: "b1", ChapterID: "c1", PromptKey: "split", Provider: "openai", Model: "m", InputTokens: 10, OutputTokens: 4, Attempts: 1, Response: "{}", Success: true},
		{ID: "call-2", Timestamp: t0.Add(time.Minute), BookID: "b1", ChapterID: "c2", PromptKey: "split", Provider: "openai", Model: "m", Attempts: 3, Error: "bad json"},
		{ID: "call-3", Timestamp: t0.Add(2 * time.Minute), BookID: "b2", PromptKey: "split", Provider: "openrouter", Model: "m", Success: true},
	}
	for i := range calls {
		if err := s.CreateLLMCall(ctx, &calls[i]); err != nil {
			t.Fatalf("CreateLLMCall(%s) error = %v", calls[i].ID, err)
		}
	}

	got, err := s.GetLLMCall(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetLLMCall error = %v", err)
	}
	if !got.Timestamp.Equal(t0) || got.InputTokens != 10 || !got.Success || got.Response != "{}" || got.ChapterID != "c1" {
		t.Errorf("GetLLMCall = %+v", got)
	}
	if _, err := s.GetLLMCall(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetLLMCall(missing) error = %v, want ErrNotFound", err)
	}

	all, err := s.ListLLMCalls(ctx, llmcall.Filter{})
	if err != nil {
		t.Fatalf("ListLLMCalls error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "call-3" || all[2].ID != "call-1" {
		t.Errorf("ListLLMCalls order = %v", callIDs(all))
	}

	byBook, _ := s.ListLLMCalls(ctx, llmcall.Filter{BookID: "b1"})
	if len(byBook) != 2 {
		t.Errorf("book filter returned %v", callIDs(byBook))
	}

	failed := false
	failures, _ := s.ListLLMCalls(ctx, llmcall.Filter{Success: &failed})
	if len(failures) != 1 || failures[0].ID != "call-2" || failures[0].Error != "bad json" {
		t.Errorf("failure filter returned %v", callIDs(failures))
	}

	limited, _ := s.ListLLMCalls(ctx, llmcall.Filter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "call-3" {
		t.Errorf("limit returned %v", callIDs(limited))
	}
}

func callIDs(calls []llmcall.Call) []string {
	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	return ids
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
		if err != nil {
			t.Fatalf("OpenSQLite error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BITBYBIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BITBYBIT_TEST_POSTGRES_DSN not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, PostgresOptions{DSN: dsn})
		if err != nil {
			t.Fatalf("OpenPostgres error = %v", err)
		}
		for _, table := range []string{"sections", "chapter_claims", "chapters", "book_payloads", "books"} {
			if _, err := s.db.ExecContext(ctx, "TRUNCATE "+table); err != nil {
				t.Fatalf("truncate %s: %v", table, err)
			}
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemoryErrorInjection(t *testing.T) {
	m := NewMemory()
	m.WriteErr = errors.New("disk full")
	err := m.CreateBook(context.Background(), &types.Book{ID: "b"}, nil)
	if !errors.Is(err, types.ErrStorage) {
		t.Errorf("CreateBook error = %v, want ErrStorage", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, Options{Driver: DriverMemory})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, ok := s.(*Memory); !ok {
			t.Errorf("Open(memory) returned %T", s)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "data", "bitbybit.db")})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer s.Close()
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("rejects bad options", func(t *testing.T) {
		for _, opts := range []Options{
			{Driver: DriverSQLite},
			{Driver: DriverPostgres},
			{Driver: "mongo"},
		} {
			if _, err := Open(ctx, opts); err == nil {
				t.Errorf("Open(%+v) succeeded", opts)
			}
		}
	})
}

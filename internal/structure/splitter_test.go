package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/bitbybit/internal/classify"
	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/types"
)

type fixture struct {
	store    *store.Memory
	book     *types.Book
	chapters []types.Chapter
	doc      *fakeDoc
}

// newFixture creates a pending book of 10-page provisional chapters.
func newFixture(t *testing.T, chapters int) *fixture {
	t.Helper()
	ctx := context.Background()
	pages := chapters * 10

	st := store.NewMemory()
	book := &types.Book{
		ID:               "book-1",
		Title:            "Fake Book",
		TotalPages:       pages,
		StructureSource:  types.SourceAI,
		ProcessingStatus: types.StatusPending,
		CreatedAt:        time.Now(),
	}
	if err := st.CreateBook(ctx, book, fakePayload); err != nil {
		t.Fatal(err)
	}
	var chs []types.Chapter
	for i, rc := range DefaultChapters(pages, 10) {
		chs = append(chs, types.Chapter{
			ID:        fmt.Sprintf("ch-%d", i+1),
			BookID:    book.ID,
			Title:     rc.Title,
			Order:     i + 1,
			StartPage: rc.StartPage,
			EndPage:   rc.EndPage,
		})
	}
	if err := st.CreateStructure(ctx, chs, nil); err != nil {
		t.Fatal(err)
	}
	return &fixture{store: st, book: book, chapters: chs, doc: newFakeDoc(pages)}
}

func (f *fixture) splitter(c classify.Classifier, policy RestructurePolicy) *Splitter {
	return NewSplitter(SplitterConfig{
		Store:      f.store,
		Classifier: c,
		Opener:     f.doc.opener(),
		Policy:     policy,
	})
}

func (f *fixture) status(t *testing.T) types.ProcessingStatus {
	t.Helper()
	b, err := f.store.GetBook(context.Background(), f.book.ID)
	if err != nil {
		t.Fatal(err)
	}
	return b.ProcessingStatus
}

func (f *fixture) sections(t *testing.T, chapterID string) []types.Section {
	t.Helper()
	secs, err := f.store.ListSectionsByChapter(context.Background(), chapterID)
	if err != nil {
		t.Fatal(err)
	}
	return secs
}

// recorder is a classifier that splits every batch in two halves and
// records the requests it saw.
type recorder struct {
	mu       sync.Mutex
	requests []classify.Request
	failOn   int // StartPage that fails
}

func (r *recorder) SplitPagesIntoSections(_ context.Context, req classify.Request) (*classify.Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if req.StartPage == r.failOn {
		return nil, errors.New("provider unavailable")
	}
	end := req.EndPage()
	mid := req.StartPage + (end-req.StartPage)/2
	return &classify.Result{Sections: []classify.CandidateSection{
		{Title: fmt.Sprintf("First half of %d", req.StartPage), StartPage: req.StartPage, EndPage: mid},
		{Title: fmt.Sprintf("Second half of %d", req.StartPage), StartPage: mid + 1, EndPage: end},
	}}, nil
}

func (r *recorder) starts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, req := range r.requests {
		out = append(out, req.StartPage)
	}
	return out
}

func TestProcessChapterFirstBatch(t *testing.T) {
	f := newFixture(t, 2)
	var got classify.Request
	c := classify.Func(func(_ context.Context, req classify.Request) (*classify.Result, error) {
		got = req
		return &classify.Result{Sections: []classify.CandidateSection{
			{Title: "A", StartPage: 1, EndPage: 5},
			{Title: "B", StartPage: 6, EndPage: 10},
		}}, nil
	})

	res, err := f.splitter(c, PolicySkip).ProcessChapter(context.Background(), f.book.ID, "ch-1")
	if err != nil {
		t.Fatalf("ProcessChapter() error = %v", err)
	}
	if res.Sections != 2 || res.Skipped {
		t.Errorf("result = %+v", res)
	}

	if got.PreviousSectionTitle != nil {
		t.Errorf("first batch got previous title %q", *got.PreviousSectionTitle)
	}
	if got.StartPage != 1 || len(got.PageImages) != 10 || len(got.PageTexts) != 10 || got.BookTitle != "Fake Book" {
		t.Errorf("request = start %d, %d images, %d texts, title %q",
			got.StartPage, len(got.PageImages), len(got.PageTexts), got.BookTitle)
	}

	secs := f.sections(t, "ch-1")
	if len(secs) != 2 {
		t.Fatalf("persisted %d sections, want 2", len(secs))
	}
	a, b := secs[0], secs[1]
	if a.Title != "A" || a.StartPage != 1 || a.EndPage != 5 || a.Order != 1 {
		t.Errorf("section A = %+v", a)
	}
	if b.Title != "B" || b.StartPage != 6 || b.EndPage != 10 || b.Order != 2 {
		t.Errorf("section B = %+v", b)
	}
	if a.ExtractedText == nil || !strings.HasPrefix(*a.ExtractedText, "text of page 1\n\ntext of page 2") ||
		!strings.HasSuffix(*a.ExtractedText, "text of page 5") {
		t.Errorf("section A text = %v", a.ExtractedText)
	}
	if a.IsRead || a.BookID != f.book.ID {
		t.Errorf("section A state = %+v", a)
	}

	if s := f.status(t); s != types.StatusProcessing {
		t.Errorf("status = %s, want processing", s)
	}
	if !f.doc.closed {
		t.Error("document left open")
	}
	ok, err := f.store.ClaimChapter(context.Background(), "ch-1", "someone-else", time.Minute)
	if err != nil || !ok {
		t.Errorf("claim not released: %v, %v", ok, err)
	}
}

func TestProcessChapterContinuesFromLastSection(t *testing.T) {
	f := newFixture(t, 2)
	rec := &recorder{}
	s := f.splitter(rec, PolicySkip)
	ctx := context.Background()

	if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-2"); err != nil {
		t.Fatal(err)
	}

	prev := rec.requests[1].PreviousSectionTitle
	if prev == nil || *prev != "Second half of 1" {
		t.Errorf("previous title = %v, want Second half of 1", prev)
	}
	secs := f.sections(t, "ch-2")
	if len(secs) != 2 || secs[0].Order != 3 || secs[1].Order != 4 {
		t.Errorf("chapter 2 sections = %+v", secs)
	}
}

func TestProcessChapterPreconditions(t *testing.T) {
	f := newFixture(t, 1)
	other := &types.Book{ID: "book-2", Title: "Other", TotalPages: 10, CreatedAt: time.Now()}
	if err := f.store.CreateBook(context.Background(), other, fakePayload); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		classifier classify.Classifier
		book, ch   string
		want       error
	}{
		{"no classifier", nil, f.book.ID, "ch-1", types.ErrConfiguration},
		{"unknown book", &recorder{}, "missing", "ch-1", types.ErrNotFound},
		{"unknown chapter", &recorder{}, f.book.ID, "missing", types.ErrNotFound},
		{"chapter of another book", &recorder{}, other.ID, "ch-1", types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *Splitter
			if tt.classifier == nil {
				s = f.splitter(nil, PolicySkip)
			} else {
				s = f.splitter(tt.classifier, PolicySkip)
			}
			_, err := s.ProcessChapter(context.Background(), tt.book, tt.ch)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if st := f.status(t); st != types.StatusPending {
				t.Errorf("status changed to %s", st)
			}
			if n := len(f.sections(t, "ch-1")); n != 0 {
				t.Errorf("%d sections persisted", n)
			}
		})
	}
}

func TestProcessChapterBusy(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	if ok, err := f.store.ClaimChapter(ctx, "ch-1", "other-run", time.Minute); err != nil || !ok {
		t.Fatalf("claim: %v %v", ok, err)
	}

	rec := &recorder{}
	_, err := f.splitter(rec, PolicySkip).ProcessChapter(ctx, f.book.ID, "ch-1")
	if !errors.Is(err, types.ErrChapterBusy) {
		t.Fatalf("error = %v, want ErrChapterBusy", err)
	}
	if len(rec.requests) != 0 {
		t.Error("classifier called for a busy chapter")
	}
}

func TestProcessChapterMalformedResponse(t *testing.T) {
	replies := map[string][]classify.CandidateSection{
		"no sections":     nil,
		"empty title":     {{Title: "  ", StartPage: 1, EndPage: 10}},
		"inverted range":  {{Title: "A", StartPage: 6, EndPage: 5}},
		"before chapter":  {{Title: "A", StartPage: 0, EndPage: 5}},
		"past chapter":    {{Title: "A", StartPage: 1, EndPage: 11}},
		"one bad of many": {{Title: "A", StartPage: 1, EndPage: 5}, {Title: "", StartPage: 6, EndPage: 10}},
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 1)
			c := classify.Func(func(context.Context, classify.Request) (*classify.Result, error) {
				return &classify.Result{Sections: reply}, nil
			})
			_, err := f.splitter(c, PolicySkip).ProcessChapter(context.Background(), f.book.ID, "ch-1")
			if !errors.Is(err, types.ErrMalformedResponse) {
				t.Fatalf("error = %v, want ErrMalformedResponse", err)
			}
			if n := len(f.sections(t, "ch-1")); n != 0 {
				t.Errorf("%d sections persisted", n)
			}
			if st := f.status(t); st != types.StatusProcessing {
				t.Errorf("status = %s, want processing", st)
			}
		})
	}
}

func TestProcessChapterRejectedCredentials(t *testing.T) {
	f := newFixture(t, 1)
	c := classify.Func(func(context.Context, classify.Request) (*classify.Result, error) {
		return nil, fmt.Errorf("%w: provider rejected credentials (status 401)", types.ErrConfiguration)
	})
	_, err := f.splitter(c, PolicySkip).ProcessChapter(context.Background(), f.book.ID, "ch-1")
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if st := f.status(t); st != types.StatusPending {
		t.Errorf("status = %s, want pending", st)
	}
	if n := len(f.sections(t, "ch-1")); n != 0 {
		t.Errorf("%d sections persisted", n)
	}
}

func TestProcessChapterCompletesBook(t *testing.T) {
	ctx := context.Background()

	t.Run("last unstructured chapter", func(t *testing.T) {
		f := newFixture(t, 2)
		s := f.splitter(&recorder{}, PolicySkip)
		if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-2"); err != nil {
			t.Fatal(err)
		}
		if st := f.status(t); st != types.StatusProcessing {
			t.Errorf("status after ch-2 = %s, want processing", st)
		}
		if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-1"); err != nil {
			t.Fatal(err)
		}
		if st := f.status(t); st != types.StatusComplete {
			t.Errorf("status after ch-1 = %s, want complete", st)
		}
	})

	t.Run("replace on a complete book", func(t *testing.T) {
		f := newFixture(t, 2)
		if err := f.splitter(&recorder{}, PolicySkip).ProcessAllChapters(ctx, f.book.ID, ProcessOptions{}); err != nil {
			t.Fatal(err)
		}
		var seen types.ProcessingStatus
		c := classify.Func(func(_ context.Context, req classify.Request) (*classify.Result, error) {
			seen = f.status(t)
			return &classify.Result{Sections: []classify.CandidateSection{
				{Title: "Whole", StartPage: req.StartPage, EndPage: req.EndPage()},
			}}, nil
		})
		res, err := f.splitter(c, PolicyReplace).ProcessChapter(ctx, f.book.ID, "ch-1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Skipped || res.Sections != 1 {
			t.Errorf("result = %+v", res)
		}
		if seen != types.StatusComplete {
			t.Errorf("status during restructure = %s, want complete", seen)
		}
		if st := f.status(t); st != types.StatusComplete {
			t.Errorf("status = %s, want complete", st)
		}
	})

	t.Run("skipped chapter leaves status", func(t *testing.T) {
		f := newFixture(t, 1)
		pre := []types.Section{{ID: "pre", ChapterID: "ch-1", BookID: f.book.ID, Title: "Existing", Order: 1, StartPage: 1, EndPage: 10}}
		if err := f.store.InsertChapterSections(ctx, "ch-1", pre, false); err != nil {
			t.Fatal(err)
		}
		res, err := f.splitter(&recorder{}, PolicySkip).ProcessChapter(ctx, f.book.ID, "ch-1")
		if err != nil || !res.Skipped {
			t.Fatalf("result = %+v, err = %v", res, err)
		}
		if st := f.status(t); st != types.StatusPending {
			t.Errorf("status = %s, want pending", st)
		}
	})
}

func TestNormalizeCandidates(t *testing.T) {
	got, err := NormalizeCandidates([]classify.CandidateSection{
		{Title: "Later", StartPage: 18, EndPage: 19},
		{Title: " Intro ", StartPage: 13, EndPage: 14},
		{Title: "Sidebar", StartPage: 13, EndPage: 13},
		{Title: "Middle", StartPage: 15, EndPage: 20},
	}, 11, 20)
	if err != nil {
		t.Fatal(err)
	}
	want := []ResolvedSection{
		{Title: "Intro / Sidebar", StartPage: 11, EndPage: 14},
		{Title: "Middle", StartPage: 15, EndPage: 17},
		{Title: "Later", StartPage: 18, EndPage: 20},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestProcessChapterPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		f := newFixture(t, 1)
		rec := &recorder{}
		s := f.splitter(rec, PolicySkip)
		if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-1"); err != nil {
			t.Fatal(err)
		}
		res, err := s.ProcessChapter(ctx, f.book.ID, "ch-1")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Skipped || res.Sections != 2 || len(rec.requests) != 1 {
			t.Errorf("result = %+v after %d calls", res, len(rec.requests))
		}
	})

	t.Run("replace", func(t *testing.T) {
		f := newFixture(t, 1)
		calls := 0
		c := classify.Func(func(_ context.Context, req classify.Request) (*classify.Result, error) {
			calls++
			if calls == 1 {
				return &classify.Result{Sections: []classify.CandidateSection{
					{Title: "Old A", StartPage: 1, EndPage: 4},
					{Title: "Old B", StartPage: 5, EndPage: 10},
				}}, nil
			}
			return &classify.Result{Sections: []classify.CandidateSection{
				{Title: "New", StartPage: 1, EndPage: 10},
			}}, nil
		})
		s := f.splitter(c, PolicyReplace)
		if _, err := s.ProcessChapter(ctx, f.book.ID, "ch-1"); err != nil {
			t.Fatal(err)
		}
		res, err := s.ProcessChapter(ctx, f.book.ID, "ch-1")
		if err != nil {
			t.Fatal(err)
		}
		secs := f.sections(t, "ch-1")
		if res.Skipped || len(secs) != 1 || secs[0].Title != "New" || secs[0].Order != 1 {
			t.Errorf("after replace: result %+v, sections %+v", res, secs)
		}
	})
}

func TestProcessAllChaptersPriorityFirst(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	// Chapter 2 is already structured and must be skipped.
	pre := []types.Section{{ID: "pre", ChapterID: "ch-2", BookID: f.book.ID, Title: "Existing", Order: 1, StartPage: 11, EndPage: 20}}
	if err := f.store.InsertChapterSections(ctx, "ch-2", pre, false); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	var counts [][2]int
	var lastPct int
	err := f.splitter(rec, PolicySkip).ProcessAllChapters(ctx, f.book.ID, ProcessOptions{
		PriorityChapterID: "ch-3",
		OnChapter: func(processed, total int) {
			counts = append(counts, [2]int{processed, total})
		},
		OnProgress: func(_ string, pct int) {
			if pct < lastPct {
				t.Errorf("progress went from %d to %d", lastPct, pct)
			}
			lastPct = pct
		},
	})
	if err != nil {
		t.Fatalf("ProcessAllChapters() error = %v", err)
	}

	if got := fmt.Sprint(rec.starts()); got != "[21 1 31]" {
		t.Errorf("classified chapters starting at %s, want [21 1 31]", got)
	}
	if got := fmt.Sprint(counts); got != "[[1 4] [2 4] [3 4] [4 4]]" {
		t.Errorf("OnChapter calls = %s", got)
	}
	if lastPct != 100 {
		t.Errorf("final progress = %d", lastPct)
	}
	if s := f.status(t); s != types.StatusComplete {
		t.Errorf("status = %s, want complete", s)
	}

	// Orders follow reading order even though chapter 3 went first.
	all, err := f.store.ListSectionsByBook(ctx, f.book.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 7 {
		t.Fatalf("book has %d sections, want 7", len(all))
	}
	wantChapters := []string{"ch-1", "ch-1", "ch-2", "ch-3", "ch-3", "ch-4", "ch-4"}
	for i, s := range all {
		if s.Order != i+1 || s.ChapterID != wantChapters[i] {
			t.Errorf("section %d: order %d chapter %s, want order %d chapter %s",
				i, s.Order, s.ChapterID, i+1, wantChapters[i])
		}
	}
	// The priority chapter continued from the pre-existing section of chapter 2.
	if rec.requests[0].PreviousSectionTitle == nil || *rec.requests[0].PreviousSectionTitle != "Existing" {
		t.Errorf("priority chapter previous title = %v", rec.requests[0].PreviousSectionTitle)
	}
}

func TestProcessAllChaptersIsIdempotent(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	rec := &recorder{}
	s := f.splitter(rec, PolicySkip)

	if err := s.ProcessAllChapters(ctx, f.book.ID, ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	before := make(map[string]int)
	for _, ch := range f.chapters {
		before[ch.ID] = len(f.sections(t, ch.ID))
	}
	calls := len(rec.requests)

	var counts [][2]int
	err := s.ProcessAllChapters(ctx, f.book.ID, ProcessOptions{
		OnChapter: func(processed, total int) {
			counts = append(counts, [2]int{processed, total})
		},
	})
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if len(rec.requests) != calls {
		t.Errorf("classifier called %d more times", len(rec.requests)-calls)
	}
	for _, ch := range f.chapters {
		if n := len(f.sections(t, ch.ID)); n != before[ch.ID] {
			t.Errorf("%s has %d sections, had %d", ch.ID, n, before[ch.ID])
		}
	}
	if got := fmt.Sprint(counts); got != "[[1 3] [2 3] [3 3]]" {
		t.Errorf("OnChapter calls = %s", got)
	}
	if st := f.status(t); st != types.StatusComplete {
		t.Errorf("status = %s, want complete", st)
	}
}

func TestProcessAllChaptersStopsOnFailure(t *testing.T) {
	f := newFixture(t, 3)
	rec := &recorder{failOn: 11}
	var calls int

	err := f.splitter(rec, PolicySkip).ProcessAllChapters(context.Background(), f.book.ID, ProcessOptions{
		OnChapter: func(int, int) { calls++ },
	})
	if err == nil || !strings.Contains(err.Error(), "provider unavailable") {
		t.Fatalf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("OnChapter called %d times, want 1", calls)
	}
	if s := f.status(t); s != types.StatusProcessing {
		t.Errorf("status = %s, want processing", s)
	}
	if len(f.sections(t, "ch-1")) != 2 || len(f.sections(t, "ch-2")) != 0 || len(f.sections(t, "ch-3")) != 0 {
		t.Error("unexpected sections after failure")
	}
	if got := fmt.Sprint(rec.starts()); got != "[1 11]" {
		t.Errorf("classified %s, want [1 11]", got)
	}
}

func TestProcessAllChaptersCancelled(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	err := f.splitter(rec, PolicySkip).ProcessAllChapters(ctx, f.book.ID, ProcessOptions{
		OnChapter: func(processed, _ int) {
			if processed == 1 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(rec.requests) != 1 {
		t.Errorf("classifier called %d times after cancel", len(rec.requests))
	}
	if s := f.status(t); s != types.StatusProcessing {
		t.Errorf("status = %s, want processing", s)
	}
}

func TestProcessAllChaptersCancelledMidCall(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	c := classify.Func(func(ctx context.Context, _ classify.Request) (*classify.Result, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	err := f.splitter(c, PolicySkip).ProcessAllChapters(ctx, f.book.ID, ProcessOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if n := len(f.sections(t, "ch-1")); n != 0 {
		t.Errorf("%d sections persisted", n)
	}
	ok, err := f.store.ClaimChapter(context.Background(), "ch-1", "next-run", time.Minute)
	if err != nil || !ok {
		t.Errorf("claim still held after cancellation: %v %v", ok, err)
	}
}

func TestPriorityFirst(t *testing.T) {
	chs := []types.Chapter{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	ids := func(list []types.Chapter) string {
		var out []string
		for _, c := range list {
			out = append(out, c.ID)
		}
		return strings.Join(out, ",")
	}
	if got := ids(priorityFirst(chs, "c")); got != "c,a,b" {
		t.Errorf("priorityFirst(c) = %s", got)
	}
	if got := ids(priorityFirst(chs, "zzz")); got != "a,b,c" {
		t.Errorf("unknown id reordered: %s", got)
	}
	if got := ids(chs); got != "a,b,c" {
		t.Errorf("input modified: %s", got)
	}
}

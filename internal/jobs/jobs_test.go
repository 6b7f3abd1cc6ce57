package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackzampolin/bitbybit/internal/store"
	"github.com/jackzampolin/bitbybit/internal/types"
)

func waitFor(t *testing.T, m *Manager, id string) *Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait(%s) error = %v", id, err)
	}
	return rec
}

func TestManager(t *testing.T) {
	t.Run("runs job to completion", func(t *testing.T) {
		st := store.NewMemory()
		m := NewManager(Dependencies{Store: st}, nil)
		job := NewMockJob(nil)

		rec, err := m.Submit(job, "book-1", map[string]any{"book_id": "book-1"})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if rec.ID == "" || rec.JobType != MockJobType {
			t.Fatalf("unexpected record %+v", rec)
		}

		job.Release()
		done := waitFor(t, m, rec.ID)
		if done.Status != StatusCompleted {
			t.Errorf("Status = %s, want completed", done.Status)
		}
		if done.StartedAt == nil || done.CompletedAt == nil {
			t.Error("expected start and completion times")
		}
		if done.Progress["done"] != "true" {
			t.Errorf("Progress = %v, want done=true", done.Progress)
		}
		if job.Deps().Store != st {
			t.Error("job did not receive the store through its context")
		}
		if job.Deps().Logger == nil {
			t.Error("job did not receive a logger")
		}
	})

	t.Run("records failure", func(t *testing.T) {
		m := NewManager(Dependencies{}, slog.Default())
		job := NewMockJob(errors.New("boom"))
		rec, err := m.Submit(job, "", nil)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		job.Release()
		done := waitFor(t, m, rec.ID)
		if done.Status != StatusFailed || done.Error != "boom" {
			t.Errorf("got status %s error %q", done.Status, done.Error)
		}
	})

	t.Run("key is exclusive until the job finishes", func(t *testing.T) {
		m := NewManager(Dependencies{}, nil)
		first := NewMockJob(nil)
		rec, err := m.Submit(first, "book-1", nil)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		_, err = m.Submit(NewMockJob(nil), "book-1", nil)
		if !errors.Is(err, ErrConflict) || !errors.Is(err, types.ErrChapterBusy) {
			t.Fatalf("second Submit() error = %v, want ErrConflict", err)
		}

		other := NewMockJob(nil)
		if _, err := m.Submit(other, "book-2", nil); err != nil {
			t.Fatalf("Submit() for another key error = %v", err)
		}
		other.Release()

		first.Release()
		waitFor(t, m, rec.ID)

		again := NewMockJob(nil)
		if _, err := m.Submit(again, "book-1", nil); err != nil {
			t.Fatalf("Submit() after finish error = %v", err)
		}
		again.Release()
	})

	t.Run("cancel", func(t *testing.T) {
		m := NewManager(Dependencies{}, nil)
		job := NewMockJob(nil)
		rec, _ := m.Submit(job, "book-1", nil)

		if _, err := m.Cancel(rec.ID); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		done := waitFor(t, m, rec.ID)
		if done.Status != StatusCancelled {
			t.Errorf("Status = %s, want cancelled", done.Status)
		}
	})

	t.Run("unknown ids", func(t *testing.T) {
		m := NewManager(Dependencies{}, nil)
		if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if _, err := m.Cancel("nope"); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Cancel() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		m := NewManager(Dependencies{}, nil)
		a := NewMockJob(nil)
		recA, _ := m.Submit(a, "book-1", nil)
		a.Release()
		waitFor(t, m, recA.ID)

		b := NewMockJob(nil)
		recB, _ := m.Submit(b, "book-2", nil)
		defer b.Release()

		running := m.List(context.Background(), ListFilter{Status: StatusRunning})
		queued := m.List(context.Background(), ListFilter{Status: StatusQueued})
		if len(running)+len(queued) != 1 {
			t.Fatalf("expected one unfinished job, got running=%d queued=%d", len(running), len(queued))
		}

		byKey := m.List(context.Background(), ListFilter{Key: "book-1"})
		if len(byKey) != 1 || byKey[0].ID != recA.ID {
			t.Errorf("List(key=book-1) = %v", byKey)
		}
		all := m.List(context.Background(), ListFilter{})
		if len(all) != 2 {
			t.Errorf("List() returned %d records, want 2", len(all))
		}
		if got := m.List(context.Background(), ListFilter{Limit: 1}); len(got) != 1 {
			t.Errorf("List(limit=1) returned %d records", len(got))
		}
		_ = recB
	})

	t.Run("shutdown cancels running jobs", func(t *testing.T) {
		m := NewManager(Dependencies{}, nil)
		job := NewMockJob(nil)
		rec, _ := m.Submit(job, "", nil)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown() error = %v", err)
		}
		got, _ := m.Get(context.Background(), rec.ID)
		if got.Status != StatusCancelled {
			t.Errorf("Status = %s, want cancelled", got.Status)
		}
		if _, err := m.Submit(NewMockJob(nil), "", nil); err == nil {
			t.Error("expected Submit after Shutdown to fail")
		}
	})
}

func TestContextDeps(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		logger := slog.Default()
		deps := Dependencies{
			Logger: logger,
		}

		ctx := ContextWithDeps(context.Background(), deps)
		got := DepsFromContext(ctx)

		if got.Logger != logger {
			t.Error("logger not preserved")
		}
	})

	t.Run("missing deps returns empty", func(t *testing.T) {
		deps := DepsFromContext(context.Background())

		if deps.Logger != nil {
			t.Error("expected nil logger")
		}
		if deps.Store != nil {
			t.Error("expected nil Store")
		}
	})
}

func TestNewRecord(t *testing.T) {
	metadata := map[string]any{"key": "value"}
	record := NewRecord("test", metadata)

	if record.JobType != "test" {
		t.Errorf("JobType = %s, want test", record.JobType)
	}
	if record.Status != StatusQueued {
		t.Errorf("Status = %s, want queued", record.Status)
	}
	if record.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
	if record.Metadata["key"] != "value" {
		t.Error("metadata not preserved")
	}
}

package llmcall

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/bitbybit/internal/providers"
)

func TestFromChatResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		res := &providers.ChatResult{
			Content:          `{"sections":[]}`,
			PromptTokens:     120,
			CompletionTokens: 30,
			ExecutionTime:    1500 * time.Millisecond,
			Provider:         "openrouter",
			ModelUsed:        "vision-model",
			Attempts:         2,
		}
		call := FromChatResult(res, nil, RecordOptions{
			BookID:    "b1",
			ChapterID: "c1",
			PromptKey: "split_sections.system",
			Provider:  "ignored",
		})
		if call.ID == "" {
			t.Fatal("expected an id")
		}
		if !call.Success || call.Error != "" {
			t.Errorf("Success = %v, Error = %q", call.Success, call.Error)
		}
		if call.Provider != "openrouter" || call.Model != "vision-model" {
			t.Errorf("provider/model = %s/%s", call.Provider, call.Model)
		}
		if call.LatencyMs != 1500 || call.InputTokens != 120 || call.OutputTokens != 30 || call.Attempts != 2 {
			t.Errorf("unexpected accounting: %+v", call)
		}
		if call.BookID != "b1" || call.ChapterID != "c1" {
			t.Errorf("references = %s/%s", call.BookID, call.ChapterID)
		}
	})

	t.Run("failure without result", func(t *testing.T) {
		call := FromChatResult(nil, errors.New("boom"), RecordOptions{Provider: "openai", Model: "m"})
		if call.Success {
			t.Error("expected failure")
		}
		if call.Error != "boom" {
			t.Errorf("Error = %q", call.Error)
		}
		if call.Provider != "openai" || call.Model != "m" {
			t.Errorf("provider/model = %s/%s", call.Provider, call.Model)
		}
	})

	t.Run("failure with result keeps response", func(t *testing.T) {
		res := &providers.ChatResult{Content: "not json", Provider: "openai", Attempts: 3}
		call := FromChatResult(res, errors.New("invalid"), RecordOptions{})
		if call.Success || call.Response != "not json" || call.Attempts != 3 {
			t.Errorf("unexpected call: %+v", call)
		}
	})
}

func TestFilterMatches(t *testing.T) {
	yes, no := true, false
	call := Call{BookID: "b1", ChapterID: "c1", PromptKey: "k", Success: true}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"book", Filter{BookID: "b1"}, true},
		{"other book", Filter{BookID: "b2"}, false},
		{"chapter", Filter{ChapterID: "c2"}, false},
		{"prompt", Filter{PromptKey: "k"}, true},
		{"success", Filter{Success: &yes}, true},
		{"failures", Filter{Success: &no}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(call); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Call{
		{Success: true, InputTokens: 10, OutputTokens: 5, LatencyMs: 100},
		{Success: false, InputTokens: 20, OutputTokens: 0, LatencyMs: 300},
	})
	want := Summary{Calls: 2, Failures: 1, InputTokens: 30, OutputTokens: 5, AvgLatencyMs: 200}
	if s != want {
		t.Errorf("Summarize() = %+v, want %+v", s, want)
	}
	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []*Call
	err   error
}

func (w *fakeWriter) CreateLLMCall(_ context.Context, call *Call) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
	return w.err
}

func TestRecorder(t *testing.T) {
	t.Run("close flushes queued calls", func(t *testing.T) {
		w := &fakeWriter{}
		r := NewRecorder(w, nil)
		for i := 0; i < 5; i++ {
			r.Record(&providers.ChatResult{Provider: "openai"}, nil, RecordOptions{PromptKey: "k"})
		}
		r.Close()
		if len(w.calls) != 5 {
			t.Fatalf("recorded %d calls, want 5", len(w.calls))
		}
	})

	t.Run("records after close are dropped", func(t *testing.T) {
		w := &fakeWriter{}
		r := NewRecorder(w, nil)
		r.Close()
		r.Close()
		r.RecordCall(&Call{ID: "late"})
		if len(w.calls) != 0 {
			t.Fatalf("recorded %d calls after close", len(w.calls))
		}
	})

	t.Run("write errors do not stop the recorder", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("disk full")}
		r := NewRecorder(w, nil)
		r.RecordCall(&Call{ID: "a"})
		r.RecordCall(&Call{ID: "b"})
		r.Close()
		if len(w.calls) != 2 {
			t.Fatalf("attempted %d writes, want 2", len(w.calls))
		}
	})

	t.Run("nil recorder", func(t *testing.T) {
		var r *Recorder
		r.Record(nil, errors.New("x"), RecordOptions{})
		r.Close()
	})
}

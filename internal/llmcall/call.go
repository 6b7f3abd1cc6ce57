// Package llmcall records model calls for traceability. Every classifier
// request is kept with its prompt key, token usage and outcome.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bitbybit/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	BookID    string `json:"book_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`

	PromptKey string `json:"prompt_key"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Attempts     int `json:"attempts"`

	Response string `json:"response,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	BookID    string
	ChapterID string
	PromptKey string

	// Provider and Model describe the request; the result's values win
	// when the call returned one.
	Provider string
	Model    string

	// Started is when the request was sent. Latency is measured from it
	// when the call produced no result.
	Started time.Time
}

// FromChatResult creates a Call from a chat outcome. Either result or
// callErr may be nil; a structured-output failure carries both.
func FromChatResult(result *providers.ChatResult, callErr error, opts RecordOptions) *Call {
	call := &Call{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		BookID:    opts.BookID,
		ChapterID: opts.ChapterID,
		PromptKey: opts.PromptKey,
		Provider:  opts.Provider,
		Model:     opts.Model,
		Success:   callErr == nil,
	}
	if !opts.Started.IsZero() {
		call.LatencyMs = int(time.Since(opts.Started).Milliseconds())
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	if result == nil {
		return call
	}

	if result.ExecutionTime > 0 {
		call.LatencyMs = int(result.ExecutionTime.Milliseconds())
	}
	if result.Provider != "" {
		call.Provider = result.Provider
	}
	if result.ModelUsed != "" {
		call.Model = result.ModelUsed
	}
	call.InputTokens = result.PromptTokens
	call.OutputTokens = result.CompletionTokens
	call.Attempts = result.Attempts
	call.Response = result.Content
	return call
}

// Filter specifies filters for listing LLM calls. Zero fields match
// everything.
type Filter struct {
	BookID    string
	ChapterID string
	PromptKey string
	Success   *bool
	Limit     int
}

// Matches reports whether c passes every set field of f. Limit is ignored.
func (f Filter) Matches(c Call) bool {
	if f.BookID != "" && c.BookID != f.BookID {
		return false
	}
	if f.ChapterID != "" && c.ChapterID != f.ChapterID {
		return false
	}
	if f.PromptKey != "" && c.PromptKey != f.PromptKey {
		return false
	}
	if f.Success != nil && c.Success != *f.Success {
		return false
	}
	return true
}

// Summary aggregates a set of calls.
type Summary struct {
	Calls        int `json:"calls"`
	Failures     int `json:"failures"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	AvgLatencyMs int `json:"avg_latency_ms"`
}

// Summarize totals calls.
func Summarize(calls []Call) Summary {
	var s Summary
	var latency int
	for _, c := range calls {
		s.Calls++
		if !c.Success {
			s.Failures++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
		latency += c.LatencyMs
	}
	if s.Calls > 0 {
		s.AvgLatencyMs = latency / s.Calls
	}
	return s
}

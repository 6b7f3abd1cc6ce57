package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/bitbybit/internal/providers"
)

// Writer persists calls.
type Writer interface {
	CreateLLMCall(ctx context.Context, call *Call) error
}

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Recorder handles fire-and-forget LLM call recording. Calls are queued
// and written by a single goroutine; when the queue is full new calls are
// dropped with a warning. A nil Recorder discards everything.
type Recorder struct {
	w      Writer
	logger *slog.Logger
	queue  chan *Call

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewRecorder starts a recorder writing to w.
func NewRecorder(w Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		w:      w,
		logger: logger,
		queue:  make(chan *Call, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for call := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.w.CreateLLMCall(ctx, call); err != nil {
			r.logger.Warn("failed to record LLM call", "id", call.ID, "prompt_key", call.PromptKey, "error", err)
		}
		cancel()
	}
}

// Record captures a chat outcome asynchronously.
func (r *Recorder) Record(result *providers.ChatResult, callErr error, opts RecordOptions) {
	if r == nil {
		return
	}
	r.RecordCall(FromChatResult(result, callErr, opts))
}

// RecordCall queues an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("LLM call queue full, dropping record", "id", call.ID)
	}
}

// Close stops accepting calls and waits for queued ones to be written.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
}

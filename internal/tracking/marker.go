package tracking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/bitbybit/internal/types"
)

// Marker persists that a section was read.
type Marker interface {
	MarkRead(ctx context.Context, sectionID string) error
}

// SectionWriter is the store method a RetryMarker calls. store.Store and
// the API client both satisfy it.
type SectionWriter interface {
	MarkSectionRead(ctx context.Context, id string, at time.Time) error
}

// RetryMarker retries transient failures of a SectionWriter. Unknown
// sections are not retried.
type RetryMarker struct {
	writer   SectionWriter
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// RetryOptions configures NewRetryMarker.
type RetryOptions struct {
	Attempts uint          // default 3
	Delay    time.Duration // initial backoff, default 200ms
	Logger   *slog.Logger
}

// NewRetryMarker wraps w.
func NewRetryMarker(w SectionWriter, opts RetryOptions) *RetryMarker {
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RetryMarker{
		writer:   w,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// MarkRead writes the read flag, retrying with backoff.
func (m *RetryMarker) MarkRead(ctx context.Context, sectionID string) error {
	at := m.now()
	return retry.Do(
		func() error {
			return m.writer.MarkSectionRead(ctx, sectionID, at)
		},
		retry.Context(ctx),
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, types.ErrNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			m.logger.Warn("mark read failed, retrying",
				"section_id", sectionID, "attempt", n+1, "error", err)
		}),
	)
}

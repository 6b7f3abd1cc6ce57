// Package structure_book runs the section splitter over a whole book as a
// background job.
package structure_book

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackzampolin/bitbybit/internal/jobs"
	"github.com/jackzampolin/bitbybit/internal/structure"
)

// JobType is the identifier for this job type.
const JobType = "structure-book"

// Processor is the part of structure.Splitter the job drives.
type Processor interface {
	ProcessAllChapters(ctx context.Context, bookID string, opts structure.ProcessOptions) error
}

// Config configures a structure book job.
type Config struct {
	BookID            string
	PriorityChapterID string
}

// Validate checks that the config has all required fields.
func (c Config) Validate() error {
	if c.BookID == "" {
		return fmt.Errorf("book id is required")
	}
	return nil
}

// Job splits every unstructured chapter of one book.
type Job struct {
	cfg       Config
	processor Processor

	mu        sync.Mutex
	processed int
	total     int
	message   string
	percent   int
}

// NewJob creates a structure book job.
func NewJob(cfg Config, processor Processor) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if processor == nil {
		return nil, fmt.Errorf("invalid config: processor is required")
	}
	return &Job{cfg: cfg, processor: processor, message: "Queued"}, nil
}

// Type returns the job type identifier.
func (j *Job) Type() string {
	return JobType
}

// Metadata describes the job for its record.
func (j *Job) Metadata() map[string]any {
	md := map[string]any{"book_id": j.cfg.BookID}
	if j.cfg.PriorityChapterID != "" {
		md["priority_chapter_id"] = j.cfg.PriorityChapterID
	}
	return md
}

func (j *Job) Execute(ctx context.Context) error {
	logger := jobs.DepsFromContext(ctx).Logger
	if logger != nil {
		logger.Info("structuring book",
			"book_id", j.cfg.BookID,
			"priority_chapter_id", j.cfg.PriorityChapterID)
	}

	return j.processor.ProcessAllChapters(ctx, j.cfg.BookID, structure.ProcessOptions{
		PriorityChapterID: j.cfg.PriorityChapterID,
		OnChapter: func(processed, total int) {
			j.mu.Lock()
			defer j.mu.Unlock()
			j.processed, j.total = processed, total
		},
		OnProgress: func(message string, percent int) {
			j.mu.Lock()
			defer j.mu.Unlock()
			j.message, j.percent = message, percent
		},
	})
}

// Status returns current progress.
func (j *Job) Status(ctx context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{
		"book_id":   j.cfg.BookID,
		"processed": strconv.Itoa(j.processed),
		"total":     strconv.Itoa(j.total),
		"message":   j.message,
		"percent":   strconv.Itoa(j.percent),
	}, nil
}

var _ jobs.Job = (*Job)(nil)

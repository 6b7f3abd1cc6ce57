// Package jobs runs long operations in the background and keeps a record
// of each run that clients can poll.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/bitbybit/internal/store"
)

// Job is the interface that all job types must implement.
type Job interface {
	// Type returns the job type identifier.
	Type() string

	// Execute runs the job. It should respect context cancellation.
	// Dependencies are retrieved via DepsFromContext(ctx).
	//
	// Execute must be safe to run again after a failure: check existing
	// state before starting work and do not assume a clean start.
	Execute(ctx context.Context) error

	// Status returns the current status of the job as key-value pairs.
	// Returns nil map if no status to report.
	Status(ctx context.Context) (map[string]string, error)
}

// Dependencies provides access to shared resources for job execution.
type Dependencies struct {
	Store  store.Store
	Logger *slog.Logger
}

// depsKey is the context key for Dependencies.
type depsKey struct{}

// ContextWithDeps returns a new context with Dependencies attached.
func ContextWithDeps(ctx context.Context, deps Dependencies) context.Context {
	return context.WithValue(ctx, depsKey{}, deps)
}

// DepsFromContext retrieves Dependencies from the context.
// Returns a Dependencies with nil fields if not found.
func DepsFromContext(ctx context.Context) Dependencies {
	deps, ok := ctx.Value(depsKey{}).(Dependencies)
	if !ok {
		return Dependencies{}
	}
	return deps
}

// Status represents the current state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Record describes one job run.
type Record struct {
	ID          string            `json:"id"`
	JobType     string            `json:"job_type"`
	Key         string            `json:"key,omitempty"` // at most one unfinished job per key
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Progress    map[string]string `json:"progress,omitempty"` // from Job.Status
}

// NewRecord creates a new job record for submission.
func NewRecord(jobType string, metadata map[string]any) *Record {
	return &Record{
		JobType:   jobType,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
}

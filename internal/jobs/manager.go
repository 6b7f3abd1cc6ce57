package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bitbybit/internal/types"
)

// ErrConflict is returned by Submit when an unfinished job holds the key.
var ErrConflict = fmt.Errorf("%w: a job is already running", types.ErrChapterBusy)

// maxFinished is how many finished records are kept for polling.
const maxFinished = 200

type entry struct {
	record *Record
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs jobs in goroutines and keeps their records in memory.
type Manager struct {
	deps   Dependencies
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	keys    map[string]string // key -> id of the unfinished job holding it
	base    context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a new job manager.
func NewManager(deps Dependencies, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps,
		logger:  logger,
		entries: make(map[string]*entry),
		keys:    make(map[string]string),
		base:    base,
		stop:    stop,
	}
}

// Submit starts job in the background. A non-empty key makes the job
// exclusive: while another unfinished job holds the key Submit fails with
// ErrConflict.
func (m *Manager) Submit(job Job, key string, metadata map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.base.Err() != nil {
		return nil, errors.New("job manager is shut down")
	}
	if key != "" {
		if holder, ok := m.keys[key]; ok {
			return nil, fmt.Errorf("%w: job %s holds %s", ErrConflict, holder, key)
		}
	}

	record := NewRecord(job.Type(), metadata)
	record.ID = uuid.NewString()
	record.Key = key

	ctx, cancel := context.WithCancel(ContextWithDeps(m.base, m.deps))
	e := &entry{record: record, job: job, cancel: cancel, done: make(chan struct{})}
	m.entries[record.ID] = e
	if key != "" {
		m.keys[key] = record.ID
	}

	m.wg.Add(1)
	go m.run(ctx, e)

	m.logger.Info("job created", "id", record.ID, "type", record.JobType, "key", key)
	snapshot := *record
	return &snapshot, nil
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()
	defer close(e.done)
	defer e.cancel()

	m.mu.Lock()
	now := time.Now().UTC()
	e.record.Status = StatusRunning
	e.record.StartedAt = &now
	m.mu.Unlock()

	err := e.job.Execute(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	done := time.Now().UTC()
	e.record.CompletedAt = &done
	switch {
	case err == nil:
		e.record.Status = StatusCompleted
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		e.record.Status = StatusCancelled
		e.record.Error = err.Error()
	default:
		e.record.Status = StatusFailed
		e.record.Error = err.Error()
	}
	if progress, serr := e.job.Status(context.Background()); serr == nil {
		e.record.Progress = progress
	}
	if e.record.Key != "" && m.keys[e.record.Key] == e.record.ID {
		delete(m.keys, e.record.Key)
	}
	m.prune()

	log := m.logger.With("id", e.record.ID, "type", e.record.JobType)
	if e.record.Status == StatusFailed {
		log.Error("job failed", "error", err, "duration", done.Sub(*e.record.StartedAt))
	} else {
		log.Info("job finished", "status", e.record.Status, "duration", done.Sub(*e.record.StartedAt))
	}
}

// Get returns a job record by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, types.ErrNotFound)
	}
	return m.withProgress(ctx, e), nil
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	Status  Status // Filter by status (empty = all)
	JobType string // Filter by job type (empty = all)
	Key     string // Filter by key (empty = all)
	Limit   int    // Max results (0 = default 100)
}

// List returns jobs matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter) []*Record {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	m.mu.Lock()
	var matched []*entry
	for _, e := range m.entries {
		r := e.record
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.JobType != "" && r.JobType != filter.JobType {
			continue
		}
		if filter.Key != "" && r.Key != filter.Key {
			continue
		}
		matched = append(matched, e)
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].record.CreatedAt.After(matched[j].record.CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	records := make([]*Record, 0, len(matched))
	for _, e := range matched {
		records = append(records, m.withProgress(ctx, e))
	}
	return records
}

// Cancel stops a running job. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) (*Record, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, types.ErrNotFound)
	}
	e.cancel()
	m.logger.Info("job cancel requested", "id", id)
	return m.snapshot(e), nil
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, types.ErrNotFound)
	}
	select {
	case <-e.done:
		return m.snapshot(e), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown cancels every running job and waits for them to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stop()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (m *Manager) withProgress(ctx context.Context, e *entry) *Record {
	r := m.snapshot(e)
	if r.Status == StatusRunning {
		if progress, err := e.job.Status(ctx); err == nil {
			r.Progress = progress
		}
	}
	return r
}

// snapshot copies a record so callers never see later mutations.
func (m *Manager) snapshot(e *entry) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *e.record
	return &r
}

// prune drops the oldest finished records beyond maxFinished. Must be
// called with the lock held.
func (m *Manager) prune() {
	var finished []*Record
	for _, e := range m.entries {
		if e.record.Status.Finished() {
			finished = append(finished, e.record)
		}
	}
	if len(finished) <= maxFinished {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for _, r := range finished[:len(finished)-maxFinished] {
		delete(m.entries, r.ID)
	}
}

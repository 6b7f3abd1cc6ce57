package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const MockJobType = "mock"

// MockJob is a simple job for testing the job system. It runs until
// released, cancelled, or told to fail.
type MockJob struct {
	release chan struct{}
	fail    error

	mu      sync.Mutex
	started bool
	done    bool
	deps    Dependencies
}

// NewMockJob creates a mock job. A nil fail makes it succeed once released.
func NewMockJob(fail error) *MockJob {
	return &MockJob{release: make(chan struct{}), fail: fail}
}

func (j *MockJob) Type() string {
	return MockJobType
}

// Release lets Execute return.
func (j *MockJob) Release() {
	close(j.release)
}

func (j *MockJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return errors.New("job already started")
	}
	j.started = true
	j.deps = DepsFromContext(ctx)
	j.mu.Unlock()

	select {
	case <-j.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
	return j.fail
}

// Status returns current progress.
func (j *MockJob) Status(ctx context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return map[string]string{
		"started": fmt.Sprintf("%t", j.started),
		"done":    fmt.Sprintf("%t", j.done),
	}, nil
}

// Deps returns the dependencies Execute received.
func (j *MockJob) Deps() Dependencies {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.deps
}

// Verify interface
var _ Job = (*MockJob)(nil)

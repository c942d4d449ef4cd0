package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

// blockingRunner waits until released (or its context ends) and then
// returns its canned error.
type blockingRunner struct {
	release chan struct{}
	err     error
}

func (r *blockingRunner) Run(ctx context.Context, _ int64) error {
	select {
	case <-r.release:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitForState(t *testing.T, reg *Registry, id string, want TaskState) Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if task, ok := reg.Get(id); ok && task.State == want {
			return task
		}
		time.Sleep(time.Millisecond)
	}
	task, _ := reg.Get(id)
	t.Fatalf("task %s state = %s, want %s", id, task.State, want)
	return Task{}
}

func TestRegistryTaskLifecycle(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	reg := NewRegistry(runner, log.NewNop())

	id := reg.Start(42)
	task, ok := reg.Get(id)
	if !ok {
		t.Fatal("task not found after Start")
	}
	if task.State != TaskRunning || task.CollectionID != 42 {
		t.Errorf("task = %+v, want running for collection 42", task)
	}

	close(runner.release)
	task = waitForState(t, reg, id, TaskSucceeded)
	if task.Error != "" {
		t.Errorf("task error = %q, want empty", task.Error)
	}
}

func TestRegistryTaskFailure(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), err: errors.New("ingestion failed")}
	reg := NewRegistry(runner, log.NewNop())

	id := reg.Start(1)
	close(runner.release)

	task := waitForState(t, reg, id, TaskFailed)
	if task.Error != "ingestion failed" {
		t.Errorf("task error = %q", task.Error)
	}
}

func TestRegistryCancel(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	reg := NewRegistry(runner, log.NewNop())

	id := reg.Start(1)
	if !reg.Cancel(id) {
		t.Fatal("Cancel() = false for a running task")
	}
	waitForState(t, reg, id, TaskCanceled)

	if reg.Cancel(id) {
		t.Error("Cancel() = true for an already finished task")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry(&blockingRunner{release: make(chan struct{})}, log.NewNop())
	if _, ok := reg.Get("no-such-task"); ok {
		t.Error("Get() = ok for an unknown task id")
	}
}

func TestRegistryShutdown(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	reg := NewRegistry(runner, log.NewNop())

	reg.Start(1)
	reg.Start(2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := reg.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

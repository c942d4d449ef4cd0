package ingest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

// TaskState is the lifecycle of one background ingestion task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
)

// Task is a snapshot of a background ingestion run.
type Task struct {
	ID           string    `json:"id"`
	CollectionID int64     `json:"collection_id"`
	State        TaskState `json:"state"`
	Error        string    `json:"error,omitempty"`
}

// Runner is what the registry launches. *Pipeline satisfies this.
type Runner interface {
	Run(ctx context.Context, collectionID int64) error
}

// Registry launches and tracks background ingestion tasks, one goroutine
// per task. Task snapshots stay queryable after completion; the durable
// outcome lives on the collection record.
type Registry struct {
	runner Runner
	logger log.Logger

	mu    sync.Mutex
	tasks map[string]*trackedTask
	wg    sync.WaitGroup
}

type trackedTask struct {
	task   Task
	cancel context.CancelFunc
}

// NewRegistry creates a task registry around the given runner.
func NewRegistry(runner Runner, logger log.Logger) *Registry {
	return &Registry{
		runner: runner,
		logger: logger,
		tasks:  make(map[string]*trackedTask),
	}
}

// Start launches ingestion for the collection in the background and
// returns the task id. The task outlives the caller's request context.
func (r *Registry) Start(collectionID int64) string {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	r.mu.Lock()
	r.tasks[id] = &trackedTask{
		task:   Task{ID: id, CollectionID: collectionID, State: TaskRunning},
		cancel: cancel,
	}
	r.mu.Unlock()

	r.logger.Info("ingestion task started", "task_id", id, "collection_id", collectionID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		err := r.runner.Run(ctx, collectionID)

		r.mu.Lock()
		defer r.mu.Unlock()
		tracked := r.tasks[id]
		switch {
		case err == nil:
			tracked.task.State = TaskSucceeded
		case ctx.Err() != nil:
			tracked.task.State = TaskCanceled
			tracked.task.Error = err.Error()
		default:
			tracked.task.State = TaskFailed
			tracked.task.Error = err.Error()
		}
	}()

	return id
}

// Get returns a snapshot of the task, if known.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracked, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return tracked.task, true
}

// Cancel signals the task's context. It reports whether the task exists
// and was still running.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracked, ok := r.tasks[id]
	if !ok || tracked.task.State != TaskRunning {
		return false
	}
	tracked.cancel()
	return true
}

// Shutdown cancels every running task and waits for their goroutines to
// finish, or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, tracked := range r.tasks {
		tracked.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

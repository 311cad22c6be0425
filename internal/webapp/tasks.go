// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package webapp

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/mdscan/internal/pipeline"
)

// TaskState is the lifecycle state of a conversion task.
type TaskState string

const (
	StatePending    TaskState = "pending"
	StateProcessing TaskState = "processing"
	StateDone       TaskState = "done"
	StateFailed     TaskState = "failed"
)

// Task tracks one asynchronous conversion request.
type Task struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	State     TaskState        `json:"state"`
	Progress  string           `json:"progress,omitempty"`
	Error     string           `json:"error,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// taskRegistry is an in-memory task table keyed by UUID.
type taskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]*Task)}
}

func (r *taskRegistry) create(url string) *Task {
	t := &Task{
		ID:        uuid.NewString(),
		URL:       url,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	return t
}

// get returns a copy so callers never see a task mid-update.
func (r *taskRegistry) get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (r *taskRegistry) setProcessing(id string) {
	r.update(id, func(t *Task) { t.State = StateProcessing })
}

func (r *taskRegistry) setProgress(id, line string) {
	r.update(id, func(t *Task) { t.Progress = line })
}

func (r *taskRegistry) setDone(id string, result *pipeline.Result) {
	r.update(id, func(t *Task) {
		t.State = StateDone
		t.Result = result
	})
}

func (r *taskRegistry) setFailed(id string, err error) {
	r.update(id, func(t *Task) {
		t.State = StateFailed
		t.Error = err.Error()
	})
}

func (r *taskRegistry) update(id string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}

// progressWriter feeds pipeline progress lines into the task record so
// the status endpoint can report the current step.
type progressWriter struct {
	registry *taskRegistry
	taskID   string
}

func (p *progressWriter) Write(b []byte) (int, error) {
	line := strings.TrimSpace(string(b))
	if line != "" {
		p.registry.setProgress(p.taskID, line)
	}
	return len(b), nil
}

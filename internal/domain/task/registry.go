package task

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	task   Task
	cancel CancelFunc
}

// Registry tracks cancelable operations by progress token. Finished tasks are kept
// for the life of the process.
type Registry struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty task registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Create registers a running task.
func (r *Registry) Create(token, description string, cancel CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[token]; ok {
		return ErrDuplicate
	}
	r.entries[token] = &entry{
		task: Task{
			Token:       token,
			Description: description,
			Status:      StatusRunning,
			StartedAt:   r.now(),
		},
		cancel: cancel,
	}
	r.order = append(r.order, token)
	return nil
}

// Complete marks a running task complete. Terminal tasks are left untouched.
func (r *Registry) Complete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok || e.task.Status.Terminal() {
		return
	}
	e.task.Status = StatusComplete
}

// Cancel moves a running task to cancelled and fires its cancel handle.
// Unknown or already terminal tokens return ErrNotFound.
func (r *Registry) Cancel(token, reason string) error {
	r.mu.Lock()
	e, ok := r.entries[token]
	if !ok || e.task.Status.Terminal() {
		r.mu.Unlock()
		return ErrNotFound
	}
	e.task.Status = StatusCancelled
	cancel := e.cancel
	r.mu.Unlock()

	if cancel != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Warn("task cancel handle panicked", "token", token, "panic", p)
				}
			}()
			cancel(reason)
		}()
	}
	r.logger.Info("task cancelled", "token", token, "reason", reason)
	return nil
}

// Get returns the task for token.
func (r *Registry) Get(token string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// List returns all tasks in creation order.
func (r *Registry) List() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]Task, 0, len(r.order))
	for _, token := range r.order {
		tasks = append(tasks, r.entries[token].task)
	}
	return tasks
}

package task

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// CancelFunc aborts the underlying operation. reason is informational.
type CancelFunc func(reason string)

// Task is a snapshot of a tracked long-running operation.
type Task struct {
	Token       string    `json:"token"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
}

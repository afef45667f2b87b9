package task

import "errors"

var (
	// ErrNotFound indicates no running task has the token.
	ErrNotFound = errors.New("task not found")
	// ErrDuplicate indicates the token is already tracked.
	ErrDuplicate = errors.New("task token already registered")
)

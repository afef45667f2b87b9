package decision

import "errors"

var (
	// ErrNotFound indicates no pending request exists for the id.
	ErrNotFound = errors.New("no pending request with that id")
	// ErrDuplicate indicates a request with the same id is already pending.
	ErrDuplicate = errors.New("request already pending")
)

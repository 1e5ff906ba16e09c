package services

import "errors"

// Registry errors
var (
	ErrTaskNotFound  = errors.New("registry: task not found")
	ErrTaskFinished  = errors.New("registry: task already in a terminal state")
	ErrNotTaskAuthor = errors.New("registry: requester is not the task author")
)

// Assignment errors
var (
	ErrDeviceInUse = errors.New("assignment: device already holds an active task")
)

// ValidationError carries the exact human-readable message a malformed
// submission is rejected with; the same message lands in the error log.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "registry: " + e.Message
}

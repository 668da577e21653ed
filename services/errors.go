package services

import (
	"errors"
	"fmt"
)

var (
	ErrSelfDependency         = errors.New("task cannot depend on itself")
	ErrCircularDependency     = errors.New("dependency would create a cycle")
	ErrDuplicateDependency    = errors.New("dependency already exists")
	ErrDependencyNotFound     = errors.New("dependency not found")
	ErrCrossProjectDependency = errors.New("tasks belong to different projects")
	ErrTaskNotFound           = errors.New("task not found")
	ErrProjectNotFound        = errors.New("project not found")
	ErrNotProjectMember       = errors.New("user is not a member of this project")
	ErrNotProjectAdmin        = errors.New("user is not an admin of this project")
	ErrAlreadyMember          = errors.New("user is already a member of this project")
	ErrRequestAlreadyPending  = errors.New("a join request is already pending")
	ErrRequestNotFound        = errors.New("join request not found")
	ErrCannotDeletePending    = errors.New("pending join requests cannot be deleted")
)

// DependencyNotSatisfiedError reports an incomplete dependency blocking a
// task from being marked done.
type DependencyNotSatisfiedError struct {
	Title string
}

func (e *DependencyNotSatisfiedError) Error() string {
	return fmt.Sprintf("dependency %q is not completed", e.Title)
}

// RequestProcessedError reports an attempt to re-process a join request
// that already reached a terminal status.
type RequestProcessedError struct {
	Status string
}

func (e *RequestProcessedError) Error() string {
	return fmt.Sprintf("join request already %s", e.Status)
}

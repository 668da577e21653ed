package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// ValidTaskStatus reports whether s is one of the known task statuses.
func ValidTaskStatus(s string) bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// ValidTaskPriority reports whether p is one of the known priorities.
func ValidTaskPriority(p string) bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh || p == TaskPriorityUrgent
}

// Task represents a unit of work inside a project.
type Task struct {
	gorm.Model

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Status      string `gorm:"default:'todo'" json:"status"`     // todo, in_progress, done
	Priority    string `gorm:"default:'medium'" json:"priority"` // low, medium, high, urgent

	ProjectID uint `gorm:"not null;index" json:"project_id"`
	CreatedBy uint `gorm:"not null;index" json:"created_by"`

	ParentTaskID *uint      `json:"parent_task_id,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`

	// Relations
	Project      Project          `json:"-"`
	Assignees    []TaskAssignee   `gorm:"foreignKey:TaskID" json:"assignees,omitempty"`
	Comments     []Comment        `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	Dependencies []TaskDependency `gorm:"foreignKey:TaskID" json:"dependencies,omitempty"`
}

// TaskDependency is a directed edge "TaskID depends on DependsOnID".
// The ordered pair is unique and both endpoints must belong to the same
// project; the edge set over a project must stay acyclic at all times.
// Join tables delete hard: a soft-deleted edge would still occupy the
// unique index and leak into joins.
type TaskDependency struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TaskID      uint `gorm:"not null;uniqueIndex:idx_task_dependency" json:"task_id"`
	DependsOnID uint `gorm:"not null;uniqueIndex:idx_task_dependency;index" json:"depends_on_id"`
}

// TaskAssignee links a user to a task they are expected to work on.
type TaskAssignee struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TaskID uint `gorm:"not null;uniqueIndex:idx_task_assignee" json:"task_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_task_assignee" json:"user_id"`

	// Relations
	User User `json:"user,omitempty"`
}

// Comment is a free-form note attached to a task.
type Comment struct {
	gorm.Model

	TaskID  uint   `gorm:"not null;index" json:"task_id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Content string `gorm:"type:text;not null" json:"content"`

	// Relations
	User User `json:"user,omitempty"`
}

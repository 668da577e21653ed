package models

import "gorm.io/gorm"

// Notification types.
const (
	NotifyTaskCreated       = "task_created"
	NotifyTaskAssigned      = "task_assigned"
	NotifyTaskStatusChanged = "task_status_changed"
	NotifyTaskCompleted     = "task_completed"
	NotifyJoinRequest       = "join_request"
	NotifyJoinApproved      = "join_approved"
	NotifyJoinRejected      = "join_rejected"
	NotifyUserJoined        = "user_joined"
)

// Notification is a message queued for a user. The web app reads them
// over the API/websocket; the bot worker additionally pushes undelivered
// ones to the user's MAX chat and flips Delivered.
type Notification struct {
	gorm.Model

	UserID    uint   `gorm:"not null;index" json:"user_id"`
	ProjectID *uint  `json:"project_id,omitempty"`
	Type      string `gorm:"not null" json:"type"`
	Title     string `gorm:"not null" json:"title"`
	Message   string `gorm:"type:text;not null" json:"message"`
	Data      string `gorm:"type:text" json:"data,omitempty"` // JSON payload for the client

	IsRead    bool `gorm:"default:false" json:"is_read"`
	Delivered bool `gorm:"default:false" json:"delivered"`

	// Relations
	User User `json:"-"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Project roles. Owner is always materialized as a ProjectMember row
// created together with the project; Project.CreatedBy is informational.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

// Join request statuses. Pending is the only non-terminal state.
const (
	JoinStatusPending  = "pending"
	JoinStatusApproved = "approved"
	JoinStatusRejected = "rejected"
)

// Project represents a task board shared by a group of members.
type Project struct {
	gorm.Model

	// Hash is the 12-char invite code used in links and bot commands.
	Hash             string `gorm:"uniqueIndex;not null" json:"hash"`
	Title            string `gorm:"not null" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	IsPrivate        bool   `gorm:"default:true" json:"is_private"`
	RequiresApproval bool   `gorm:"default:false" json:"requires_approval"`
	CreatedBy        uint   `gorm:"not null;index" json:"created_by"`

	// Relations
	Members      []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Tasks        []Task          `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
	JoinRequests []JoinRequest   `gorm:"foreignKey:ProjectID" json:"join_requests,omitempty"`
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	gorm.Model

	ProjectID uint   `gorm:"not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_project_user" json:"user_id"`
	Role      string `gorm:"default:'member'" json:"role"` // owner, admin, member, guest

	NotificationsEnabled bool `gorm:"default:true" json:"notifications_enabled"`

	// Relations
	Project Project `json:"-"`
	User    User    `json:"user,omitempty"`
}

// IsAdmin reports whether the member may manage the project.
func (m *ProjectMember) IsAdmin() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// JoinRequest is a pending/approved/rejected request to join a project
// that requires approval. Once processed it never changes again.
type JoinRequest struct {
	gorm.Model

	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	UserID    uint   `gorm:"not null;index" json:"user_id"`
	Status    string `gorm:"default:'pending'" json:"status"` // pending, approved, rejected

	RequestedAt   time.Time  `json:"requested_at"`
	ProcessedByID *uint      `json:"processed_by_id,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	// Relations
	Project Project `json:"-"`
	User    User    `json:"user,omitempty"`
}

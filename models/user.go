package models

import "gorm.io/gorm"

// User represents an account mapped to a MAX messenger identity.
// There is no password: the MAX user id is the identity, and the
// first /auth/token call creates the row.
type User struct {
	gorm.Model

	MaxID    string `gorm:"uniqueIndex;not null" json:"max_id"`
	FullName string `gorm:"not null" json:"full_name"`
	Username string `json:"username,omitempty"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Memberships   []ProjectMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	JoinRequests  []JoinRequest   `gorm:"foreignKey:UserID" json:"join_requests,omitempty"`
	Notifications []Notification  `gorm:"foreignKey:UserID" json:"notifications,omitempty"`
}

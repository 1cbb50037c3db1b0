package models

import (
	"strings"
	"time"
)

// RoleName is the closed set of roles a user can hold.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RoleManager RoleName = "manager"
	RoleUser    RoleName = "user"
)

// Valid reports whether r is one of the known roles.
func (r RoleName) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// RoleForEmail returns the role granted at registration for the given email.
func RoleForEmail(email string) RoleName {
	email = strings.ToLower(email)
	switch {
	case strings.Contains(email, "@admin"):
		return RoleAdmin
	case strings.Contains(email, "@manager"):
		return RoleManager
	default:
		return RoleUser
	}
}

// Role binds one user to exactly one role.
type Role struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	UserID    uint64    `gorm:"uniqueIndex;not null" json:"user_id"`
	Name      RoleName  `gorm:"type:varchar(20);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

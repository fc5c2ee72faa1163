package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the access level of a staff account
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a staff member (technician or administrator)
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	Email      string         `gorm:"uniqueIndex;not null" json:"email"`
	Password   *string        `json:"-"`                            // bcrypt hash, nil for externally-authenticated accounts
	ExternalID *string        `gorm:"uniqueIndex" json:"-"`         // identity provider subject ('sub' claim)
	Role       Role           `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	Image      *string        `json:"image"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin returns true if the user may manage other users
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

package models

import "time"

// Customer represents a person or business that brings devices in for repair
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     *string   `gorm:"index" json:"email"`
	Phone     *string   `gorm:"index" json:"phone"`
	Address   *string   `json:"address"`
	Jobs      []Job     `gorm:"foreignKey:CustomerID" json:"jobs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}

// HasEmail reports whether the customer can be reached by email
func (c Customer) HasEmail() bool {
	return c.Email != nil && *c.Email != ""
}

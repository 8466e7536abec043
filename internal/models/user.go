package models

import (
	"time"
)

// User is an account in the identity directory
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	FullName  string    `gorm:"type:varchar(255);not null" json:"fullName"`
	Role      Role      `gorm:"type:varchar(20);not null;default:'client';index" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Actor returns the user as a service caller
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

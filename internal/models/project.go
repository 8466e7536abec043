package models

import (
	"time"
)

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPending, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the project still counts as open work
func (s ProjectStatus) Active() bool {
	return s == ProjectStatusPending || s == ProjectStatusInProgress
}

// ConvertsReferral reports whether reaching s should convert the project's referral
func (s ProjectStatus) ConvertsReferral() bool {
	return s == ProjectStatusInProgress || s == ProjectStatusCompleted
}

// Project is client work tracked in the registry
type Project struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"type:varchar(255);not null" json:"name"`
	Description  string        `gorm:"type:text" json:"description"`
	Price        Money         `gorm:"type:decimal(12,2);not null" json:"price"`
	Status       ProjectStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Progress     int           `gorm:"not null;default:0" json:"progress"`
	ClientID     uint          `gorm:"not null;index" json:"clientId"`
	Client       *User         `gorm:"foreignKey:ClientID" json:"-"`
	PartnerID    *uint         `gorm:"index" json:"partnerId"`
	Partner      *Partner      `gorm:"foreignKey:PartnerID" json:"-"`
	DeliveryDate *time.Time    `json:"deliveryDate"`
	CompletedAt  *time.Time    `gorm:"index" json:"completedAt"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

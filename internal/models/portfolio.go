package models

import (
	"time"
)

// PortfolioItem is a showcased piece of delivered work
type PortfolioItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description  string     `gorm:"type:text;not null" json:"description"`
	Category     string     `gorm:"type:varchar(100);not null;index" json:"category"`
	Technologies string     `gorm:"type:text" json:"technologies"`
	ImageURL     string     `gorm:"type:text" json:"imageUrl"`
	DemoURL      string     `gorm:"type:text" json:"demoUrl"`
	CompletedAt  *time.Time `json:"completedAt"`
	Featured     bool       `gorm:"not null;default:false" json:"featured"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

package models

import (
	"time"
)

// PaymentProvider identifies the gateway that processed a payment
type PaymentProvider string

const (
	PaymentProviderMercadoPago PaymentProvider = "mercadopago"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is a client payment towards a project
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ProjectID     uint            `gorm:"not null;index" json:"projectId"`
	Project       *Project        `gorm:"foreignKey:ProjectID" json:"-"`
	Amount        Money           `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description   string          `gorm:"type:varchar(255)" json:"description"`
	Status        PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Provider      PaymentProvider `gorm:"type:varchar(20);not null" json:"provider"`
	PaymentMethod string          `gorm:"type:varchar(50)" json:"paymentMethod"`
	Reference     string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference"`
	PreferenceID  string          `gorm:"type:varchar(100);index" json:"preferenceId"`
	TransactionID string          `gorm:"type:varchar(100);index" json:"transactionId"`
	GatewayData   JSON            `gorm:"type:jsonb" json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

package models

import (
	"time"
)

// ReferralStatus is the state of a referral; it only moves forward
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConverted ReferralStatus = "converted"
	ReferralStatusPaid      ReferralStatus = "paid"
)

// CanTransitionTo allows pending -> converted -> paid and nothing else
func (s ReferralStatus) CanTransitionTo(next ReferralStatus) bool {
	switch s {
	case ReferralStatusPending:
		return next == ReferralStatusConverted
	case ReferralStatusConverted:
		return next == ReferralStatusPaid
	}
	return false
}

// Referral attributes a client, and optionally a project, to a partner
type Referral struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	PartnerID        uint           `gorm:"not null;uniqueIndex:idx_referrals_partner_client" json:"partnerId"`
	Partner          *Partner       `gorm:"foreignKey:PartnerID;constraint:OnDelete:CASCADE" json:"-"`
	ClientID         uint           `gorm:"not null;index;uniqueIndex:idx_referrals_partner_client" json:"clientId"`
	Client           *User          `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
	ProjectID        *uint          `gorm:"index" json:"projectId"`
	Project          *Project       `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"-"`
	Status           ReferralStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CommissionAmount Money          `gorm:"type:decimal(12,2);not null;default:0" json:"commissionAmount"`
	ConvertedAt      *time.Time     `json:"convertedAt"`
	PaidAt           *time.Time     `json:"paidAt"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// ReferralView is a referral enriched with client and project details
type ReferralView struct {
	ID               uint           `json:"id"`
	Status           ReferralStatus `json:"status"`
	CommissionAmount Money          `json:"commissionAmount"`
	CreatedAt        time.Time      `json:"createdAt"`
	ClientName       string         `json:"clientName"`
	ClientEmail      string         `json:"clientEmail"`
	ProjectName      *string        `json:"projectName"`
	ProjectPrice     *Money         `json:"projectPrice"`
}

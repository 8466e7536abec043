package models

import (
	"time"
)

// DefaultCommissionRate is applied when a partner is created without an explicit rate
var DefaultCommissionRate = MustMoney("25.00")

// Partner is the ledger entry of a user who earns referral commissions
type Partner struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;uniqueIndex" json:"userId"`
	User           *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	ReferralCode   string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"referralCode"`
	CommissionRate Money     `gorm:"type:decimal(5,2);not null;default:25.00" json:"commissionRate"`
	TotalEarnings  Money     `gorm:"type:decimal(12,2);not null;default:0" json:"totalEarnings"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PartnerProfile is a partner merged with its live statistics
type PartnerProfile struct {
	ID              uint      `json:"id"`
	UserID          uint      `json:"userId"`
	ReferralCode    string    `json:"referralCode"`
	CommissionRate  Money     `json:"commissionRate"`
	CreatedAt       time.Time `json:"createdAt"`
	TotalEarnings   Money     `json:"totalEarnings"`
	ActiveReferrals int64     `json:"activeReferrals"`
	ClosedSales     int64     `json:"closedSales"`
	ConversionRate  int       `json:"conversionRate"`
}

// NewPartnerProfile merges p with stats
func NewPartnerProfile(p *Partner, stats *PartnerStats) PartnerProfile {
	return PartnerProfile{
		ID:              p.ID,
		UserID:          p.UserID,
		ReferralCode:    p.ReferralCode,
		CommissionRate:  p.CommissionRate,
		CreatedAt:       p.CreatedAt,
		TotalEarnings:   stats.TotalEarnings,
		ActiveReferrals: stats.ActiveReferrals,
		ClosedSales:     stats.ClosedSales,
		ConversionRate:  stats.ConversionRate,
	}
}

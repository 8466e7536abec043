package models

import "math"

// PartnerStats is derived on every read from the partner and its referrals
type PartnerStats struct {
	TotalEarnings   Money `json:"totalEarnings"`
	ActiveReferrals int64 `json:"activeReferrals"`
	ClosedSales     int64 `json:"closedSales"`
	ConversionRate  int   `json:"conversionRate"`
}

// AdminStats is the platform-wide snapshot shown on the admin dashboard
type AdminStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	ActivePartners int64 `json:"activePartners"`
	ActiveProjects int64 `json:"activeProjects"`
	MonthlyRevenue Money `json:"monthlyRevenue"`
}

// EarningsDrift is a partner whose accumulator disagrees with its paid referrals
type EarningsDrift struct {
	PartnerID  uint  `json:"partnerId"`
	Recorded   Money `json:"recorded"`
	Settled    Money `json:"settled"`
	Difference Money `json:"difference"` // recorded minus settled
}

// ConversionRate returns round(closed/total*100), or 0 without referrals
func ConversionRate(closed, total int64) int {
	if total <= 0 {
		return 0
	}
	rate := int(math.Round(float64(closed) / float64(total) * 100))
	if rate > 100 {
		return 100
	}
	return rate
}

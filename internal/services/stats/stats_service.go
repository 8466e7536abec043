package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"gorm.io/gorm"
)

var ErrPartnerNotFound = apperrors.NotFound("partner", "Partner not found")

// StatsService computes dashboard figures from the live tables on every call
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// GetPartnerStats returns the earnings and referral counts of a partner
func (s *StatsService) GetPartnerStats(ctx context.Context, partnerID uint) (*models.PartnerStats, error) {
	db := s.db.WithContext(ctx)

	var partner models.Partner
	if err := db.Select("id", "total_earnings").Take(&partner, partnerID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("error loading partner: %w", err)
	}

	var active int64
	if err := db.Model(&models.Referral{}).Where("partner_id = ?", partnerID).Count(&active).Error; err != nil {
		return nil, fmt.Errorf("error counting referrals: %w", err)
	}

	var closed int64
	if err := db.Model(&models.Referral{}).
		Where("partner_id = ? AND status = ?", partnerID, models.ReferralStatusPaid).
		Count(&closed).Error; err != nil {
		return nil, fmt.Errorf("error counting closed sales: %w", err)
	}

	return &models.PartnerStats{
		TotalEarnings:   partner.TotalEarnings,
		ActiveReferrals: active,
		ClosedSales:     closed,
		ConversionRate:  models.ConversionRate(closed, active),
	}, nil
}

// GetAdminStats returns the platform snapshot for the current calendar month
func (s *StatsService) GetAdminStats(ctx context.Context) (*models.AdminStats, error) {
	db := s.db.WithContext(ctx)
	stats := &models.AdminStats{}

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}
	if err := db.Model(&models.Partner{}).Count(&stats.ActivePartners).Error; err != nil {
		return nil, fmt.Errorf("error counting partners: %w", err)
	}
	if err := db.Model(&models.Project{}).
		Where("status IN ?", []models.ProjectStatus{models.ProjectStatusPending, models.ProjectStatusInProgress}).
		Count(&stats.ActiveProjects).Error; err != nil {
		return nil, fmt.Errorf("error counting projects: %w", err)
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	var revenue sql.NullString
	if err := db.Model(&models.Project{}).
		Select("COALESCE(SUM(price), 0)").
		Where("status = ? AND completed_at >= ? AND completed_at < ?", models.ProjectStatusCompleted, monthStart, nextMonth).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("error summing revenue: %w", err)
	}
	stats.MonthlyRevenue = models.ZeroMoney()
	if revenue.Valid {
		amount, err := models.NewMoney(revenue.String)
		if err != nil {
			return nil, fmt.Errorf("error parsing revenue: %w", err)
		}
		stats.MonthlyRevenue = amount.Round2()
	}

	return stats, nil
}

type driftRow struct {
	PartnerID uint
	Recorded  models.Money
	Settled   sql.NullString
}

// EarningsDrift lists partners whose total earnings differ from their paid commissions
func (s *StatsService) EarningsDrift(ctx context.Context) ([]models.EarningsDrift, error) {
	var rows []driftRow
	err := s.db.WithContext(ctx).
		Table("partners AS p").
		Select(`p.id AS partner_id, p.total_earnings AS recorded,
			(SELECT COALESCE(SUM(r.commission_amount), 0) FROM referrals r
			 WHERE r.partner_id = p.id AND r.status = ?) AS settled`, models.ReferralStatusPaid).
		Order("p.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error reconciling earnings: %w", err)
	}

	drift := []models.EarningsDrift{}
	for _, row := range rows {
		settled := models.ZeroMoney()
		if row.Settled.Valid {
			if settled, err = models.NewMoney(row.Settled.String); err != nil {
				return nil, fmt.Errorf("error parsing settled sum: %w", err)
			}
		}
		if !row.Recorded.Equal(settled) {
			drift = append(drift, models.EarningsDrift{
				PartnerID:  row.PartnerID,
				Recorded:   row.Recorded.Round2(),
				Settled:    settled.Round2(),
				Difference: row.Recorded.Sub(settled).Round2(),
			})
		}
	}
	return drift, nil
}

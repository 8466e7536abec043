package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/monitoring"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSelfReferral      = apperrors.BadRequest("referral", "Partners cannot refer themselves")
	ErrDuplicateReferral = apperrors.AlreadyExists("referral", "Client was already referred by this partner")
	ErrReferralNotFound  = apperrors.NotFound("referral", "Referral not found")
	ErrPartnerNotFound   = apperrors.NotFound("partner", "Partner not found")
	ErrClientNotFound    = apperrors.NotFound("user", "User not found")
	ErrInvalidTransition = apperrors.InvalidStatus("referral", "Referral cannot move to the requested status")
	ErrNoProject         = apperrors.InvalidStatus("referral", "Referral has no project to convert")
)

// Notifier stores and pushes partner notifications
type Notifier interface {
	CreateWithTx(tx *gorm.DB, n *models.Notification) error
	Publish(n models.Notification)
}

// CommissionMailer tells a partner a commission was paid
type CommissionMailer interface {
	SendCommissionNotification(ctx context.Context, to, fullName string, amount models.Money, projectName string) error
}

// ReferralService owns referral attribution and the pending -> converted -> paid lifecycle
type ReferralService struct {
	db       *gorm.DB
	notifier Notifier
	mailer   CommissionMailer
	now      func() time.Time
	logger   *zap.Logger
}

// NewReferralService creates a new referral service. notifier and mailer may be nil.
func NewReferralService(db *gorm.DB, notifier Notifier, mailer CommissionMailer, logger *zap.Logger) *ReferralService {
	return &ReferralService{
		db:       db,
		notifier: notifier,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// CalculateCommission returns rate percent of price, rounded to cents
func CalculateCommission(price, rate models.Money) models.Money {
	return price.Percent(rate)
}

// CreateReferral attributes clientID to partnerID
func (s *ReferralService) CreateReferral(ctx context.Context, partnerID, clientID uint, projectID *uint) (*models.Referral, error) {
	return s.CreateReferralWithTx(s.db.WithContext(ctx), partnerID, clientID, projectID)
}

// CreateReferralWithTx is CreateReferral inside the caller's transaction
func (s *ReferralService) CreateReferralWithTx(tx *gorm.DB, partnerID, clientID uint, projectID *uint) (*models.Referral, error) {
	var partner models.Partner
	if err := tx.Take(&partner, partnerID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("error finding partner: %w", err)
	}
	if partner.UserID == clientID {
		return nil, ErrSelfReferral
	}

	var client models.User
	if err := tx.Select("id").Take(&client, clientID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("error finding client: %w", err)
	}

	var count int64
	if err := tx.Model(&models.Referral{}).
		Where("partner_id = ? AND client_id = ?", partnerID, clientID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("error checking referral: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateReferral
	}

	referral := models.Referral{
		PartnerID:        partnerID,
		ClientID:         clientID,
		ProjectID:        projectID,
		Status:           models.ReferralStatusPending,
		CommissionAmount: models.ZeroMoney(),
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&referral).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateReferral
		}
		return nil, fmt.Errorf("error creating referral: %w", err)
	}

	monitoring.ReferralTransitions.WithLabelValues(string(models.ReferralStatusPending)).Inc()
	s.logger.Info("referral created",
		zap.Uint("referral_id", referral.ID),
		zap.Uint("partner_id", partnerID),
		zap.Uint("client_id", clientID),
	)
	return &referral, nil
}

type referralRow struct {
	ID               uint
	Status           models.ReferralStatus
	CommissionAmount models.Money
	CreatedAt        time.Time
	ClientName       string
	ClientEmail      string
	ProjectName      sql.NullString
	ProjectPrice     sql.NullString
}

// ListReferrals returns the partner's referrals joined with client and project, newest first
func (s *ReferralService) ListReferrals(ctx context.Context, partnerID uint) ([]models.ReferralView, error) {
	var rows []referralRow
	err := s.db.WithContext(ctx).
		Table("referrals AS r").
		Select(`r.id, r.status, r.commission_amount, r.created_at,
			u.full_name AS client_name, u.email AS client_email,
			p.name AS project_name, p.price AS project_price`).
		Joins("JOIN users u ON u.id = r.client_id").
		Joins("LEFT JOIN projects p ON p.id = r.project_id").
		Where("r.partner_id = ?", partnerID).
		Order("r.created_at DESC, r.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing referrals: %w", err)
	}

	views := make([]models.ReferralView, 0, len(rows))
	for _, row := range rows {
		view := models.ReferralView{
			ID:               row.ID,
			Status:           row.Status,
			CommissionAmount: row.CommissionAmount,
			CreatedAt:        row.CreatedAt,
			ClientName:       row.ClientName,
			ClientEmail:      row.ClientEmail,
		}
		if row.ProjectName.Valid {
			name := row.ProjectName.String
			view.ProjectName = &name
		}
		if row.ProjectPrice.Valid {
			price, err := models.NewMoney(row.ProjectPrice.String)
			if err != nil {
				return nil, fmt.Errorf("error parsing project price: %w", err)
			}
			view.ProjectPrice = &price
		}
		views = append(views, view)
	}
	return views, nil
}

// AttachProjectWithTx links the client's oldest unattached pending referral to project
// and records the referring partner on the project. It returns nil when the client was not referred.
func (s *ReferralService) AttachProjectWithTx(tx *gorm.DB, clientID uint, project *models.Project) (*models.Referral, error) {
	var referral models.Referral
	err := tx.Where("client_id = ? AND status = ? AND project_id IS NULL", clientID, models.ReferralStatusPending).
		Order("created_at ASC, id ASC").
		Take(&referral).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding pending referral: %w", err)
	}

	res := tx.Model(&models.Referral{}).
		Where("id = ? AND project_id IS NULL", referral.ID).
		Update("project_id", project.ID)
	if res.Error != nil {
		return nil, fmt.Errorf("error attaching project to referral: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	if err := tx.Model(&models.Project{}).Where("id = ?", project.ID).Update("partner_id", referral.PartnerID).Error; err != nil {
		return nil, fmt.Errorf("error setting project partner: %w", err)
	}

	referral.ProjectID = &project.ID
	partnerID := referral.PartnerID
	project.PartnerID = &partnerID
	return &referral, nil
}

// GetReferral returns a referral by id
func (s *ReferralService) GetReferral(ctx context.Context, referralID uint) (*models.Referral, error) {
	return s.findReferral(s.db.WithContext(ctx), referralID)
}

// FindByProject returns the referral attached to a project
func (s *ReferralService) FindByProject(ctx context.Context, projectID uint) (*models.Referral, error) {
	var referral models.Referral
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Take(&referral).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("error finding referral by project: %w", err)
	}
	return &referral, nil
}

func (s *ReferralService) findReferral(tx *gorm.DB, referralID uint) (*models.Referral, error) {
	var referral models.Referral
	if err := tx.Take(&referral, referralID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("error finding referral: %w", err)
	}
	return &referral, nil
}

// Convert moves a pending referral to converted and fixes its commission
func (s *ReferralService) Convert(ctx context.Context, referralID uint) (*models.Referral, error) {
	var converted *models.Referral
	var notification *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referral, err := s.findReferral(tx, referralID)
		if err != nil {
			return err
		}
		if !referral.Status.CanTransitionTo(models.ReferralStatusConverted) {
			return ErrInvalidTransition
		}
		if referral.ProjectID == nil {
			return ErrNoProject
		}

		var project models.Project
		if err := tx.Take(&project, *referral.ProjectID).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrNoProject
			}
			return fmt.Errorf("error finding project: %w", err)
		}
		var partner models.Partner
		if err := tx.Take(&partner, referral.PartnerID).Error; err != nil {
			return fmt.Errorf("error finding partner: %w", err)
		}

		commission := CalculateCommission(project.Price, partner.CommissionRate)
		now := s.now()
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", referral.ID, models.ReferralStatusPending).
			Updates(map[string]interface{}{
				"status":            models.ReferralStatusConverted,
				"commission_amount": commission,
				"converted_at":      now,
			})
		if res.Error != nil {
			return fmt.Errorf("error converting referral: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		referral.Status = models.ReferralStatusConverted
		referral.CommissionAmount = commission
		referral.ConvertedAt = &now
		converted = referral

		if s.notifier != nil {
			notification = &models.Notification{
				UserID:  partner.UserID,
				Title:   "Referral converted",
				Message: fmt.Sprintf("Your referral for %s converted. Commission: $%s", project.Name, commission.String()),
				Type:    models.NotificationTypeInfo,
			}
			if err := s.notifier.CreateWithTx(tx, notification); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ReferralTransitions.WithLabelValues(string(models.ReferralStatusConverted)).Inc()
	s.logger.Info("referral converted",
		zap.Uint("referral_id", converted.ID),
		zap.String("commission", converted.CommissionAmount.String()),
	)
	if notification != nil {
		s.notifier.Publish(*notification)
	}
	return converted, nil
}

// ConvertForProject converts the pending referral of a project, if there is one
func (s *ReferralService) ConvertForProject(ctx context.Context, projectID uint) (*models.Referral, error) {
	var referral models.Referral
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND status = ?", projectID, models.ReferralStatusPending).
		Order("id ASC").
		Take(&referral).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding referral for project: %w", err)
	}

	converted, err := s.Convert(ctx, referral.ID)
	if errors.Is(err, ErrInvalidTransition) {
		// Converted concurrently by another trigger.
		return nil, nil
	}
	return converted, err
}

// Settle moves a converted referral to paid and credits the partner
func (s *ReferralService) Settle(ctx context.Context, referralID uint) (*models.Referral, error) {
	var settled *models.Referral
	var partner models.Partner
	var projectName string
	var notification *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referral, err := s.findReferral(tx, referralID)
		if err != nil {
			return err
		}
		if !referral.Status.CanTransitionTo(models.ReferralStatusPaid) {
			return ErrInvalidTransition
		}

		now := s.now()
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", referral.ID, models.ReferralStatusConverted).
			Updates(map[string]interface{}{
				"status":  models.ReferralStatusPaid,
				"paid_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("error settling referral: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if err := tx.Model(&models.Partner{}).
			Where("id = ?", referral.PartnerID).
			Update("total_earnings", gorm.Expr("total_earnings + ?", referral.CommissionAmount)).Error; err != nil {
			return fmt.Errorf("error crediting partner: %w", err)
		}

		if err := tx.Preload("User").Take(&partner, referral.PartnerID).Error; err != nil {
			return fmt.Errorf("error finding partner: %w", err)
		}
		if referral.ProjectID != nil {
			var project models.Project
			if err := tx.Select("id", "name").Take(&project, *referral.ProjectID).Error; err == nil {
				projectName = project.Name
			}
		}

		referral.Status = models.ReferralStatusPaid
		referral.PaidAt = &now
		settled = referral

		if s.notifier != nil {
			notification = &models.Notification{
				UserID:  partner.UserID,
				Title:   "Commission paid",
				Message: fmt.Sprintf("You earned $%s in commission", referral.CommissionAmount.String()),
				Type:    models.NotificationTypeSuccess,
			}
			if err := s.notifier.CreateWithTx(tx, notification); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	amount, _ := settled.CommissionAmount.Float64()
	monitoring.ReferralTransitions.WithLabelValues(string(models.ReferralStatusPaid)).Inc()
	monitoring.CommissionsSettled.Add(amount)
	s.logger.Info("referral settled",
		zap.Uint("referral_id", settled.ID),
		zap.Uint("partner_id", partner.ID),
		zap.String("commission", settled.CommissionAmount.String()),
	)

	if notification != nil {
		s.notifier.Publish(*notification)
	}
	if s.mailer != nil && partner.User != nil {
		if err := s.mailer.SendCommissionNotification(ctx, partner.User.Email, partner.User.FullName, settled.CommissionAmount, projectName); err != nil {
			s.logger.Error("failed to send commission email", zap.Uint("referral_id", settled.ID), zap.Error(err))
		}
	}
	return settled, nil
}

package partner

import (
	"context"
	"errors"
	"fmt"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/monitoring"
	"github.com/softwarepar/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDuplicatePartner      = apperrors.AlreadyExists("partner", "User is already a partner")
	ErrUserNotFound          = apperrors.NotFound("user", "User not found")
	ErrPartnerNotFound       = apperrors.NotFound("partner", "Partner not found")
	ErrInvalidCommissionRate = apperrors.BadRequest("partner", "Commission rate must be between 0 and 100")
	ErrCodeExhausted         = errors.New("could not generate a unique referral code")
)

// maxCodeAttempts bounds referral code generation when codes collide
const maxCodeAttempts = 5

var maxCommissionRate = models.MoneyFromInt(100)

// PartnerService manages the partner ledger
type PartnerService struct {
	db           *gorm.DB
	generateCode func(userID uint) (string, error)
	logger       *zap.Logger
}

// NewPartnerService creates a new partner service
func NewPartnerService(db *gorm.DB, logger *zap.Logger) *PartnerService {
	return &PartnerService{
		db:           db,
		generateCode: utils.GenerateReferralCode,
		logger:       logger,
	}
}

// ValidateCommissionRate checks that rate is a percentage
func ValidateCommissionRate(rate models.Money) error {
	if rate.IsNegative() || rate.GreaterThan(maxCommissionRate.Decimal) {
		return ErrInvalidCommissionRate
	}
	return nil
}

// CreatePartner registers userID as a partner with a freshly issued referral code
func (s *PartnerService) CreatePartner(ctx context.Context, userID uint, commissionRate *models.Money) (*models.Partner, error) {
	return s.CreatePartnerWithTx(s.db.WithContext(ctx), userID, commissionRate)
}

// CreatePartnerWithTx is CreatePartner inside the caller's transaction
func (s *PartnerService) CreatePartnerWithTx(tx *gorm.DB, userID uint, commissionRate *models.Money) (*models.Partner, error) {
	rate := models.DefaultCommissionRate
	if commissionRate != nil {
		if err := ValidateCommissionRate(*commissionRate); err != nil {
			return nil, err
		}
		rate = commissionRate.Round2()
	}

	var user models.User
	if err := tx.Select("id").Take(&user, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	exists, err := s.hasPartner(tx, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePartner
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.generateCode(userID)
		if err != nil {
			return nil, fmt.Errorf("error generating referral code: %w", err)
		}

		var taken int64
		if err := tx.Model(&models.Partner{}).Where("referral_code = ?", code).Count(&taken).Error; err != nil {
			return nil, fmt.Errorf("error checking referral code: %w", err)
		}
		if taken > 0 {
			continue
		}

		partner := models.Partner{
			UserID:         userID,
			ReferralCode:   code,
			CommissionRate: rate,
			TotalEarnings:  models.ZeroMoney(),
		}
		// A savepoint keeps the caller's transaction usable if the insert hits a unique index.
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&partner).Error
		})
		if err == nil {
			monitoring.PartnersCreated.Inc()
			s.logger.Info("partner created",
				zap.Uint("partner_id", partner.ID),
				zap.Uint("user_id", userID),
				zap.String("referral_code", partner.ReferralCode),
			)
			return &partner, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("error creating partner: %w", err)
		}

		// Lost a race: either the user became a partner or the code was taken.
		if exists, checkErr := s.hasPartner(tx, userID); checkErr == nil && exists {
			return nil, ErrDuplicatePartner
		}
	}

	return nil, ErrCodeExhausted
}

func (s *PartnerService) hasPartner(tx *gorm.DB, userID uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.Partner{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("error checking partner: %w", err)
	}
	return count > 0, nil
}

// GetPartner returns the partner record of a user
func (s *PartnerService) GetPartner(ctx context.Context, userID uint) (*models.Partner, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&partner).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("error finding partner: %w", err)
	}
	return &partner, nil
}

// GetPartnerByID returns a partner by its own id
func (s *PartnerService) GetPartnerByID(ctx context.Context, partnerID uint) (*models.Partner, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).Take(&partner, partnerID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("error finding partner: %w", err)
	}
	return &partner, nil
}

// GetPartnerByReferralCode looks a partner up by code, ignoring case
func (s *PartnerService) GetPartnerByReferralCode(ctx context.Context, code string) (*models.Partner, error) {
	return s.FindByReferralCodeWithTx(s.db.WithContext(ctx), code)
}

// FindByReferralCodeWithTx is GetPartnerByReferralCode inside the caller's transaction
func (s *PartnerService) FindByReferralCodeWithTx(tx *gorm.DB, code string) (*models.Partner, error) {
	code = utils.NormalizeReferralCode(code)
	if code == "" {
		return nil, ErrPartnerNotFound
	}

	var partner models.Partner
	if err := tx.Where("referral_code = ?", code).Take(&partner).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("error finding partner by code: %w", err)
	}
	return &partner, nil
}

// UpdateCommissionRate changes the rate applied to future conversions
func (s *PartnerService) UpdateCommissionRate(ctx context.Context, partnerID uint, rate models.Money) (*models.Partner, error) {
	if err := ValidateCommissionRate(rate); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Partner{}).
		Where("id = ?", partnerID).
		Update("commission_rate", rate.Round2())
	if res.Error != nil {
		return nil, fmt.Errorf("error updating commission rate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPartnerNotFound
	}
	return s.GetPartnerByID(ctx, partnerID)
}

// ListPartners returns every partner with its user, newest first
func (s *PartnerService) ListPartners(ctx context.Context) ([]models.Partner, error) {
	partners := []models.Partner{}
	if err := s.db.WithContext(ctx).Preload("User").Order("created_at DESC, id DESC").Find(&partners).Error; err != nil {
		return nil, fmt.Errorf("error listing partners: %w", err)
	}
	return partners, nil
}

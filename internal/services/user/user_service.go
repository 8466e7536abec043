package user

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = apperrors.AlreadyExists("user", "Email is already registered")
	ErrUserNotFound       = apperrors.NotFound("user", "User not found")
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "auth", "Invalid credentials", http.StatusUnauthorized)
	ErrAccountDisabled    = apperrors.New(apperrors.CodeInvalidCredentials, "auth", "Account is disabled", http.StatusUnauthorized)
	ErrRoleNotAllowed     = apperrors.BadRequest("user", "Role must be client or partner")
	ErrFullNameTooShort   = apperrors.BadRequest("user", "Full name must have at least 2 characters")
)

// PartnerLedger issues partners and resolves referral codes inside a registration
type PartnerLedger interface {
	CreatePartnerWithTx(tx *gorm.DB, userID uint, commissionRate *models.Money) (*models.Partner, error)
	FindByReferralCodeWithTx(tx *gorm.DB, code string) (*models.Partner, error)
}

// ReferralRecorder attributes a new client to a partner
type ReferralRecorder interface {
	CreateReferralWithTx(tx *gorm.DB, partnerID, clientID uint, projectID *uint) (*models.Referral, error)
}

// WelcomeMailer greets new accounts
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, to, fullName string, role models.Role) error
}

// RegisterInput holds a self-service sign-up
type RegisterInput struct {
	Email        string
	Password     string
	FullName     string
	Role         models.Role
	ReferralCode string
}

// UpdateUserInput is an admin patch; the role is intentionally absent
type UpdateUserInput struct {
	FullName *string
	IsActive *bool
	Password *string
}

// AuthResult is a user with a freshly issued token
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// UserService is the identity directory
type UserService struct {
	db        *gorm.DB
	hasher    utils.PasswordHasher
	tokens    utils.TokenIssuer
	policy    utils.PasswordPolicy
	partners  PartnerLedger
	referrals ReferralRecorder
	mailer    WelcomeMailer
	async     func(func())
	logger    *zap.Logger
}

// Dependencies are the collaborators of the user service
type Dependencies struct {
	Hasher    utils.PasswordHasher
	Tokens    utils.TokenIssuer
	Policy    utils.PasswordPolicy
	Partners  PartnerLedger
	Referrals ReferralRecorder
	Mailer    WelcomeMailer
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, deps Dependencies, logger *zap.Logger) *UserService {
	return &UserService{
		db:        db,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		policy:    deps.Policy,
		partners:  deps.Partners,
		referrals: deps.Referrals,
		mailer:    deps.Mailer,
		async:     func(f func()) { go f() },
		logger:    logger,
	}
}

// Register creates the user and, depending on role, its partner or referral in one transaction
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := utils.NormalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)

	if !input.Role.SelfRegistrable() {
		return nil, ErrRoleNotAllowed
	}
	if len([]rune(fullName)) < 2 {
		return nil, ErrFullNameTooShort
	}
	if err := s.policy.ValidatePassword(input.Password, email); err != nil {
		return nil, apperrors.BadRequest("user", err.Error())
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := models.User{
		Email:    email,
		Password: hash,
		FullName: fullName,
		Role:     input.Role,
		IsActive: true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("error checking email: %w", err)
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(&user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("error creating user: %w", err)
		}

		switch user.Role {
		case models.RolePartner:
			if _, err := s.partners.CreatePartnerWithTx(tx, user.ID, nil); err != nil {
				return err
			}
		case models.RoleClient:
			return s.attributeReferral(tx, &user, input.ReferralCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	s.sendWelcome(user)

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	return &AuthResult{User: &user, Token: token}, nil
}

// attributeReferral records a pending referral when the client signed up with a known code
func (s *UserService) attributeReferral(tx *gorm.DB, client *models.User, code string) error {
	if strings.TrimSpace(code) == "" || s.referrals == nil {
		return nil
	}

	partner, err := s.partners.FindByReferralCodeWithTx(tx, code)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.CodeNotFound {
			s.logger.Info("ignoring unknown referral code", zap.String("code", utils.NormalizeReferralCode(code)))
			return nil
		}
		return err
	}

	_, err = s.referrals.CreateReferralWithTx(tx, partner.ID, client.ID, nil)
	return err
}

func (s *UserService) sendWelcome(user models.User) {
	if s.mailer == nil {
		return
	}
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.SendWelcome(ctx, user.Email, user.FullName, user.Role); err != nil {
			s.logger.Error("failed to send welcome email", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	})
}

// Authenticate checks credentials and issues a token
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).Take(&user).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	if !s.hasher.Compare(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	return &AuthResult{User: &user, Token: token}, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

// GetActiveUser returns a user that may still use the platform
func (s *UserService) GetActiveUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// ListUsers returns every user, newest first
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// UpdateUser patches name, activation or password. Roles never change.
func (s *UserService) UpdateUser(ctx context.Context, userID uint, input UpdateUserInput) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if len([]rune(name)) < 2 {
			return nil, ErrFullNameTooShort
		}
		updates["full_name"] = name
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Password != nil {
		if err := s.policy.ValidatePassword(*input.Password, user.Email); err != nil {
			return nil, apperrors.BadRequest("user", err.Error())
		}
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("error hashing password: %w", err)
		}
		updates["password"] = hash
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	if input.IsActive != nil && !*input.IsActive {
		s.logger.Info("user deactivated", zap.Uint("user_id", userID))
	}
	return s.GetUser(ctx, userID)
}

type seedAccount struct {
	email    string
	fullName string
	role     models.Role
	password string
}

// Seed creates the demo admin, client and partner accounts when they are missing
func (s *UserService) Seed(ctx context.Context, cfg config.SeedConfig) error {
	accounts := []seedAccount{
		{"admin@softwarepar.lat", "Administrador SoftwarePar", models.RoleAdmin, cfg.AdminPassword},
		{"cliente@test.com", "Cliente Test", models.RoleClient, cfg.ClientPassword},
		{"partner@test.com", "Partner Test", models.RolePartner, cfg.PartnerPassword},
	}

	for _, account := range accounts {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ?", account.email).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}

			hash, err := s.hasher.Hash(account.password)
			if err != nil {
				return err
			}
			user := models.User{Email: account.email, Password: hash, FullName: account.fullName, Role: account.role, IsActive: true}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if account.role == models.RolePartner {
				if _, err := s.partners.CreatePartnerWithTx(tx, user.ID, nil); err != nil {
					return err
				}
			}
			s.logger.Info("seeded user", zap.String("email", account.email), zap.String("role", string(account.role)))
			return nil
		})
		if err != nil {
			return fmt.Errorf("error seeding %s: %w", account.email, err)
		}
	}
	return nil
}

package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound  = apperrors.NotFound("project", "Project not found")
	ErrClientNotFound   = apperrors.NotFound("user", "User not found")
	ErrInvalidPrice     = apperrors.BadRequest("project", "Price must be zero or greater")
	ErrInvalidProgress  = apperrors.BadRequest("project", "Progress must be between 0 and 100")
	ErrInvalidStatus    = apperrors.BadRequest("project", "Unknown project status")
	ErrNameRequired     = apperrors.BadRequest("project", "Project name is required")
	ErrNotAllowed       = apperrors.Forbidden("You cannot access this project")
	ErrRestrictedFields = apperrors.Forbidden("Only administrators can change price, status or progress")
)

// ReferralTracker links projects to referrals and advances them
type ReferralTracker interface {
	AttachProjectWithTx(tx *gorm.DB, clientID uint, project *models.Project) (*models.Referral, error)
	ConvertForProject(ctx context.Context, projectID uint) (*models.Referral, error)
}

// Notifier delivers in-app notifications
type Notifier interface {
	Create(ctx context.Context, n *models.Notification) error
}

// CreateProjectInput holds the fields accepted when creating a project
type CreateProjectInput struct {
	Name         string
	Description  string
	Price        models.Money
	ClientID     *uint
	DeliveryDate *time.Time
}

// UpdateProjectInput is a partial patch; nil fields are left untouched
type UpdateProjectInput struct {
	Name         *string
	Description  *string
	Price        *models.Money
	Status       *models.ProjectStatus
	Progress     *int
	DeliveryDate *time.Time
}

func (in UpdateProjectInput) touchesRestricted() bool {
	return in.Price != nil || in.Status != nil || in.Progress != nil
}

// ProjectService is the project registry
type ProjectService struct {
	db        *gorm.DB
	referrals ReferralTracker
	notifier  Notifier
	now       func() time.Time
	logger    *zap.Logger
}

// NewProjectService creates a new project service. notifier may be nil.
func NewProjectService(db *gorm.DB, referrals ReferralTracker, notifier Notifier, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		db:        db,
		referrals: referrals,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// CreateProject stores a project owned by the actor, or by input.ClientID when an admin creates it
func (s *ProjectService) CreateProject(ctx context.Context, actor models.Actor, input CreateProjectInput) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrNameRequired
	}
	if input.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}

	clientID := actor.UserID
	if actor.IsAdmin() && input.ClientID != nil {
		clientID = *input.ClientID
	}

	project := models.Project{
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		Price:        input.Price.Round2(),
		Status:       models.ProjectStatusPending,
		Progress:     0,
		ClientID:     clientID,
		DeliveryDate: input.DeliveryDate,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Select("id", "role").Take(&owner, clientID).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrClientNotFound
			}
			return fmt.Errorf("error finding client: %w", err)
		}

		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("error creating project: %w", err)
		}

		if owner.Role == models.RoleClient && s.referrals != nil {
			referral, err := s.referrals.AttachProjectWithTx(tx, owner.ID, &project)
			if err != nil {
				return err
			}
			if referral != nil {
				s.logger.Info("project attached to referral",
					zap.Uint("project_id", project.ID),
					zap.Uint("referral_id", referral.ID),
					zap.Uint("partner_id", referral.PartnerID),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", zap.Uint("project_id", project.ID), zap.Uint("client_id", clientID))
	return &project, nil
}

// UpdateProject applies a partial patch. Owners may only edit descriptive fields.
func (s *ProjectService) UpdateProject(ctx context.Context, actor models.Actor, projectID uint, input UpdateProjectInput) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, projectID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("error finding project: %w", err)
	}

	if !s.CanAccess(actor, &project) {
		return nil, ErrNotAllowed
	}
	if !actor.IsAdmin() && input.touchesRestricted() {
		return nil, ErrRestrictedFields
	}

	now := s.now()
	updates := map[string]interface{}{"updated_at": now}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.DeliveryDate != nil {
		updates["delivery_date"] = *input.DeliveryDate
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		updates["price"] = input.Price.Round2()
	}
	if input.Progress != nil {
		if *input.Progress < 0 || *input.Progress > 100 {
			return nil, ErrInvalidProgress
		}
		updates["progress"] = *input.Progress
	}

	statusChanged := false
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		statusChanged = *input.Status != project.Status
		updates["status"] = *input.Status
		switch {
		case *input.Status == models.ProjectStatusCompleted && statusChanged:
			updates["completed_at"] = now
			updates["progress"] = 100
		case *input.Status != models.ProjectStatusCompleted && project.CompletedAt != nil:
			updates["completed_at"] = nil
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating project: %w", err)
	}

	var updated models.Project
	if err := s.db.WithContext(ctx).Take(&updated, projectID).Error; err != nil {
		return nil, fmt.Errorf("error reloading project: %w", err)
	}

	if statusChanged {
		s.onStatusChange(ctx, &updated)
	}
	return &updated, nil
}

// onStatusChange runs the side effects of a committed status change
func (s *ProjectService) onStatusChange(ctx context.Context, project *models.Project) {
	s.logger.Info("project status changed", zap.Uint("project_id", project.ID), zap.String("status", string(project.Status)))

	if project.Status.ConvertsReferral() && s.referrals != nil {
		if _, err := s.referrals.ConvertForProject(ctx, project.ID); err != nil {
			s.logger.Error("failed to convert referral", zap.Uint("project_id", project.ID), zap.Error(err))
		}
	}

	if s.notifier != nil {
		n := &models.Notification{
			UserID:  project.ClientID,
			Title:   "Project updated",
			Message: fmt.Sprintf("Your project %s is now %s", project.Name, strings.ReplaceAll(string(project.Status), "_", " ")),
			Type:    models.NotificationTypeInfo,
		}
		if project.Status == models.ProjectStatusCompleted {
			n.Type = models.NotificationTypeSuccess
		}
		if err := s.notifier.Create(ctx, n); err != nil {
			s.logger.Error("failed to notify client", zap.Uint("project_id", project.ID), zap.Error(err))
		}
	}
}

// GetProjects returns the projects visible to the caller, newest first
func (s *ProjectService) GetProjects(ctx context.Context, userID uint, role models.Role) ([]models.Project, error) {
	projects := []models.Project{}
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")

	switch role {
	case models.RoleAdmin:
	case models.RoleClient:
		query = query.Where("client_id = ?", userID)
	case models.RolePartner:
		partnerID, ok, err := s.partnerIDFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return projects, nil
		}
		query = query.Where("partner_id = ?", partnerID)
	default:
		return projects, nil
	}

	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return projects, nil
}

// GetProject returns a single project if the actor may see it
func (s *ProjectService) GetProject(ctx context.Context, actor models.Actor, projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, projectID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("error finding project: %w", err)
	}

	visible, err := s.canView(ctx, actor, &project)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrProjectNotFound
	}
	return &project, nil
}

// CanAccess reports whether the actor owns the project or is an admin
func (s *ProjectService) CanAccess(actor models.Actor, project *models.Project) bool {
	return actor.IsAdmin() || project.ClientID == actor.UserID
}

func (s *ProjectService) canView(ctx context.Context, actor models.Actor, project *models.Project) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleClient:
		return project.ClientID == actor.UserID, nil
	case models.RolePartner:
		partnerID, ok, err := s.partnerIDFor(ctx, actor.UserID)
		if err != nil || !ok {
			return false, err
		}
		return project.PartnerID != nil && *project.PartnerID == partnerID, nil
	}
	return false, nil
}

func (s *ProjectService) partnerIDFor(ctx context.Context, userID uint) (uint, bool, error) {
	var partner models.Partner
	err := s.db.WithContext(ctx).Select("id").Where("user_id = ?", userID).Take(&partner).Error
	if err != nil {
		if database.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error finding partner: %w", err)
	}
	return partner.ID, true, nil
}

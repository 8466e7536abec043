package ticket

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
	ErrTicketNotFound  = apperrors.NotFound("ticket", "Ticket not found")
	ErrProjectNotFound = apperrors.NotFound("project", "Project not found")
	ErrInvalidStatus   = apperrors.BadRequest("ticket", "Unknown ticket status")
	ErrInvalidPriority = apperrors.BadRequest("ticket", "Unknown ticket priority")
	ErrTitleRequired   = apperrors.BadRequest("ticket", "Title and description are required")
)

// CreateTicketInput holds the fields accepted when opening a ticket
type CreateTicketInput struct {
	Title       string
	Description string
	Priority    models.TicketPriority
	ProjectID   *uint
}

// UpdateTicketInput patches the workflow fields of a ticket
type UpdateTicketInput struct {
	Status   *models.TicketStatus
	Priority *models.TicketPriority
}

// TicketService manages support tickets
type TicketService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(db *gorm.DB, logger *zap.Logger) *TicketService {
	return &TicketService{db: db, logger: logger}
}

// CreateTicket opens a ticket for the actor, optionally about one of their projects
func (s *TicketService) CreateTicket(ctx context.Context, actor models.Actor, input CreateTicketInput) (*models.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Description) == "" {
		return nil, ErrTitleRequired
	}

	priority := input.Priority
	if priority == "" {
		priority = models.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	if input.ProjectID != nil {
		var project models.Project
		if err := s.db.WithContext(ctx).Select("id", "client_id").Take(&project, *input.ProjectID).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("error finding project: %w", err)
		}
		if !actor.IsAdmin() && project.ClientID != actor.UserID {
			return nil, ErrProjectNotFound
		}
	}

	ticket := models.Ticket{
		Title:       title,
		Description: input.Description,
		Status:      models.TicketStatusOpen,
		Priority:    priority,
		UserID:      actor.UserID,
		ProjectID:   input.ProjectID,
	}
	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("error creating ticket: %w", err)
	}

	s.logger.Info("ticket created", zap.Uint("ticket_id", ticket.ID), zap.Uint("user_id", actor.UserID))
	return &ticket, nil
}

// ListTickets returns the actor's tickets, or every ticket for admins, newest first
func (s *TicketService) ListTickets(ctx context.Context, actor models.Actor) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if !actor.Role.Can(models.CapViewAllTickets) {
		query = query.Where("user_id = ?", actor.UserID)
	}
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicket changes status or priority. Only the owner or an admin may do this.
func (s *TicketService) UpdateTicket(ctx context.Context, actor models.Actor, ticketID uint, input UpdateTicketInput) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).Take(&ticket, ticketID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("error finding ticket: %w", err)
	}
	if !actor.IsAdmin() && ticket.UserID != actor.UserID {
		return nil, ErrTicketNotFound
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		updates["priority"] = *input.Priority
	}

	if err := s.db.WithContext(ctx).Model(&models.Ticket{}).Where("id = ?", ticketID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating ticket: %w", err)
	}
	if err := s.db.WithContext(ctx).Take(&ticket, ticketID).Error; err != nil {
		return nil, fmt.Errorf("error reloading ticket: %w", err)
	}
	return &ticket, nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/ticket"
)

type TicketDesk interface {
	CreateTicket(ctx context.Context, actor models.Actor, input ticket.CreateTicketInput) (*models.Ticket, error)
	ListTickets(ctx context.Context, actor models.Actor) ([]models.Ticket, error)
	UpdateTicket(ctx context.Context, actor models.Actor, ticketID uint, input ticket.UpdateTicketInput) (*models.Ticket, error)
}

type TicketHandler struct {
	tickets TicketDesk
}

func NewTicketHandler(tickets TicketDesk) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

type CreateTicketRequest struct {
	Title       string                `json:"title" binding:"required,max=255"`
	Description string                `json:"description" binding:"required"`
	Priority    models.TicketPriority `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	ProjectID   *uint                 `json:"projectId"`
}

type UpdateTicketRequest struct {
	Status   *models.TicketStatus   `json:"status" binding:"omitempty,oneof=open in_progress resolved closed"`
	Priority *models.TicketPriority `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// List handles GET /api/tickets
func (h *TicketHandler) List(c *gin.Context) {
	tickets, err := h.tickets.ListTickets(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// Create handles POST /api/tickets
func (h *TicketHandler) Create(c *gin.Context) {
	var req CreateTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.tickets.CreateTicket(c.Request.Context(), middleware.CurrentActor(c), ticket.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Update handles PUT /api/tickets/:id
func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateTicketRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.tickets.UpdateTicket(c.Request.Context(), middleware.CurrentActor(c), id, ticket.UpdateTicketInput{
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

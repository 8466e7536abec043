package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/project"
)

// ProjectRegistry is the project service as seen by HTTP
type ProjectRegistry interface {
	CreateProject(ctx context.Context, actor models.Actor, input project.CreateProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, actor models.Actor, projectID uint, input project.UpdateProjectInput) (*models.Project, error)
	GetProjects(ctx context.Context, userID uint, role models.Role) ([]models.Project, error)
	GetProject(ctx context.Context, actor models.Actor, projectID uint) (*models.Project, error)
}

type ProjectHandler struct {
	projects ProjectRegistry
}

func NewProjectHandler(projects ProjectRegistry) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// CreateProjectRequest is the body of POST /api/projects. clientId is honored for admins only.
type CreateProjectRequest struct {
	Name         string       `json:"name" binding:"required,max=255"`
	Description  string       `json:"description"`
	Price        models.Money `json:"price"`
	ClientID     *uint        `json:"clientId"`
	DeliveryDate *time.Time   `json:"deliveryDate"`
}

// UpdateProjectRequest is the body of PUT /api/projects/:id
type UpdateProjectRequest struct {
	Name         *string               `json:"name" binding:"omitempty,min=1,max=255"`
	Description  *string               `json:"description"`
	Price        *models.Money         `json:"price"`
	Status       *models.ProjectStatus `json:"status" binding:"omitempty,oneof=pending in_progress completed cancelled"`
	Progress     *int                  `json:"progress" binding:"omitempty,min=0,max=100"`
	DeliveryDate *time.Time            `json:"deliveryDate"`
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	projects, err := h.projects.GetProjects(c.Request.Context(), actor.UserID, actor.Role)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.projects.GetProject(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.projects.CreateProject(c.Request.Context(), middleware.CurrentActor(c), project.CreateProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		ClientID:     req.ClientID,
		DeliveryDate: req.DeliveryDate,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.projects.UpdateProject(c.Request.Context(), middleware.CurrentActor(c), id, project.UpdateProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Status:       req.Status,
		Progress:     req.Progress,
		DeliveryDate: req.DeliveryDate,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

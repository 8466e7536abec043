package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/user"
)

// UserDirectory is the admin view of the identity directory
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, userID uint, input user.UpdateUserInput) (*models.User, error)
}

// UserHandler handles admin user management
type UserHandler struct {
	users UserDirectory
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserDirectory) *UserHandler {
	return &UserHandler{users: users}
}

// UpdateUserRequest is a partial patch. Role is not accepted.
type UpdateUserRequest struct {
	FullName *string `json:"fullName" binding:"omitempty,min=2"`
	IsActive *bool   `json:"isActive"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUser handles PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.users.UpdateUser(c.Request.Context(), id, user.UpdateUserInput{
		FullName: req.FullName,
		IsActive: req.IsActive,
		Password: req.Password,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

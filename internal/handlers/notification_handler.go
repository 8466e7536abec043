package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
)

type NotificationInbox interface {
	List(ctx context.Context, userID uint) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uint) error
}

type NotificationHandler struct {
	notifications NotificationInbox
}

func NewNotificationHandler(notifications NotificationInbox) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// MarkRead handles PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), middleware.CurrentActor(c).UserID, id); err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

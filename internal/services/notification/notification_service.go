package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListLimit caps how many notifications are returned per request
const ListLimit = 20

var ErrNotificationNotFound = apperrors.NotFound("notification", "Notification not found")

// Publisher pushes realtime events to a connected user
type Publisher interface {
	SendToUser(userID uint, message interface{}) int
}

// Event is the realtime envelope pushed when a notification is created
type Event struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

// NotificationService stores in-app notifications and fans them out
type NotificationService struct {
	db        *gorm.DB
	publisher Publisher
	logger    *zap.Logger
}

// NewNotificationService creates a notification service. publisher may be nil.
func NewNotificationService(db *gorm.DB, publisher Publisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{db: db, publisher: publisher, logger: logger}
}

// Create stores n and pushes it to the user's open sockets
func (s *NotificationService) Create(ctx context.Context, n *models.Notification) error {
	if err := s.CreateWithTx(s.db.WithContext(ctx), n); err != nil {
		return err
	}
	s.Publish(*n)
	return nil
}

// CreateWithTx stores n inside the caller's transaction. Call Publish after commit.
func (s *NotificationService) CreateWithTx(tx *gorm.DB, n *models.Notification) error {
	if n.Type == "" {
		n.Type = models.NotificationTypeInfo
	}
	if err := tx.Create(n).Error; err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

// Publish delivers n over the realtime channel. Delivery is best-effort.
func (s *NotificationService) Publish(n models.Notification) {
	if s.publisher == nil {
		return
	}
	delivered := s.publisher.SendToUser(n.UserID, Event{
		Type:         "notification",
		Notification: n,
		Timestamp:    time.Now().UTC(),
	})
	s.logger.Debug("notification published", zap.Uint("user_id", n.UserID), zap.Int("connections", delivered))
}

// List returns the latest notifications of a user
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(ListLimit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("error listing notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks a notification owned by userID as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("error marking notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

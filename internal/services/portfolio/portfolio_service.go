package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"gorm.io/gorm"
)

var ErrTitleRequired = apperrors.BadRequest("portfolio", "Title, description and category are required")

// CreateItemInput holds the fields of a new portfolio item
type CreateItemInput struct {
	Title        string
	Description  string
	Category     string
	Technologies []string
	ImageURL     string
	DemoURL      string
	CompletedAt  *time.Time
	Featured     bool
}

// PortfolioService manages the public showcase
type PortfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(db *gorm.DB) *PortfolioService {
	return &PortfolioService{db: db}
}

// ListActive returns visible items, featured first and newest next
func (s *PortfolioService) ListActive(ctx context.Context) ([]models.PortfolioItem, error) {
	items := []models.PortfolioItem{}
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("featured DESC, created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("error listing portfolio: %w", err)
	}
	return items, nil
}

// CreateItem stores a new item under a unique slug derived from its title
func (s *PortfolioService) CreateItem(ctx context.Context, input CreateItemInput) (*models.PortfolioItem, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Description) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, ErrTitleRequired
	}

	item := models.PortfolioItem{
		Title:        title,
		Slug:         slug.Make(title),
		Description:  input.Description,
		Category:     strings.TrimSpace(input.Category),
		Technologies: strings.Join(input.Technologies, ","),
		ImageURL:     input.ImageURL,
		DemoURL:      input.DemoURL,
		CompletedAt:  input.CompletedAt,
		Featured:     input.Featured,
		IsActive:     true,
	}
	if item.Slug == "" {
		item.Slug = "item"
	}

	err := s.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(&item).Error
	})
	if err != nil && database.IsUniqueViolation(err) {
		// Same title as an existing item: disambiguate the slug once.
		item.ID = 0
		item.Slug = fmt.Sprintf("%s-%s", slug.Make(title), uuid.NewString()[:8])
		err = s.db.WithContext(ctx).Create(&item).Error
	}
	if err != nil {
		return nil, fmt.Errorf("error creating portfolio item: %w", err)
	}
	return &item, nil
}

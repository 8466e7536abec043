package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/email"
	"go.uber.org/zap"
)

type ContactMailer interface {
	SendContactNotification(ctx context.Context, msg email.ContactMessage) error
}

type PortfolioCatalog interface {
	ListActive(ctx context.Context) ([]models.PortfolioItem, error)
}

// Pinger reports storage reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PublicHandler serves the unauthenticated site endpoints
type PublicHandler struct {
	mailer    ContactMailer
	portfolio PortfolioCatalog
	db        Pinger
	logger    *zap.Logger
}

func NewPublicHandler(mailer ContactMailer, portfolio PortfolioCatalog, db Pinger, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{mailer: mailer, portfolio: portfolio, db: db, logger: logger}
}

// ContactRequest is the public contact form
type ContactRequest struct {
	FullName    string `json:"fullName" binding:"required,min=2,max=255"`
	Email       string `json:"email" binding:"required,email"`
	Company     string `json:"company" binding:"max=255"`
	ServiceType string `json:"serviceType" binding:"max=100"`
	Budget      string `json:"budget" binding:"max=100"`
	Message     string `json:"message" binding:"required,min=10,max=5000"`
	AcceptTerms bool   `json:"acceptTerms" binding:"eq=true"`
}

// Contact handles POST /api/contact
func (h *PublicHandler) Contact(c *gin.Context) {
	var req ContactRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.mailer.SendContactNotification(c.Request.Context(), email.ContactMessage{
		FullName:    strings.TrimSpace(req.FullName),
		Email:       req.Email,
		Company:     req.Company,
		ServiceType: req.ServiceType,
		Budget:      req.Budget,
		Message:     req.Message,
	})
	if err != nil {
		apperrors.HandleError(c, apperrors.ExternalService(err, "contact", "Unable to send your message, please try again later"))
		return
	}

	h.logger.Info("contact form received", zap.String("service_type", req.ServiceType))
	c.JSON(http.StatusOK, gin.H{"message": "Message sent successfully"})
}

// Portfolio handles GET /api/portfolio
func (h *PublicHandler) Portfolio(c *gin.Context) {
	items, err := h.portfolio.ListActive(c.Request.Context())
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Health handles GET /health
func (h *PublicHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "ok", "up", http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		status, database, code = "degraded", "down", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC(),
	})
}

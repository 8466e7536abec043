package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/payment/providers/mercadopago"
	"github.com/softwarepar/backend/internal/services/portfolio"
)

type AdminStatsReader interface {
	GetAdminStats(ctx context.Context) (*models.AdminStats, error)
}

// ReferralWorkflow exposes the manual referral transitions
type ReferralWorkflow interface {
	Convert(ctx context.Context, referralID uint) (*models.Referral, error)
	Settle(ctx context.Context, referralID uint) (*models.Referral, error)
}

// GatewaySettings reads and rotates payment gateway credentials
type GatewaySettings interface {
	GatewayConfig() mercadopago.PublicConfig
	UpdateGatewayConfig(update mercadopago.ConfigUpdate) mercadopago.PublicConfig
}

type PortfolioEditor interface {
	CreateItem(ctx context.Context, input portfolio.CreateItemInput) (*models.PortfolioItem, error)
}

// AdminHandler serves the admin-only dashboard endpoints
type AdminHandler struct {
	stats     AdminStatsReader
	referrals ReferralWorkflow
	gateway   GatewaySettings
	portfolio PortfolioEditor
}

func NewAdminHandler(stats AdminStatsReader, referrals ReferralWorkflow, gateway GatewaySettings, portfolio PortfolioEditor) *AdminHandler {
	return &AdminHandler{stats: stats, referrals: referrals, gateway: gateway, portfolio: portfolio}
}

type UpdateGatewayRequest struct {
	AccessToken   string `json:"accessToken" binding:"max=255"`
	PublicKey     string `json:"publicKey" binding:"max=255"`
	WebhookSecret string `json:"webhookSecret" binding:"max=255"`
}

type CreatePortfolioRequest struct {
	Title        string     `json:"title" binding:"required,max=255"`
	Description  string     `json:"description" binding:"required"`
	Category     string     `json:"category" binding:"required,max=100"`
	Technologies []string   `json:"technologies" binding:"omitempty,dive,required"`
	ImageURL     string     `json:"imageUrl" binding:"omitempty,url"`
	DemoURL      string     `json:"demoUrl" binding:"omitempty,url"`
	CompletedAt  *time.Time `json:"completedAt"`
	Featured     bool       `json:"featured"`
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.GetAdminStats(c.Request.Context())
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ConvertReferral handles POST /api/admin/referrals/:id/convert
func (h *AdminHandler) ConvertReferral(c *gin.Context) {
	h.transition(c, h.referrals.Convert)
}

// SettleReferral handles POST /api/admin/referrals/:id/settle
func (h *AdminHandler) SettleReferral(c *gin.Context) {
	h.transition(c, h.referrals.Settle)
}

func (h *AdminHandler) transition(c *gin.Context, fn func(context.Context, uint) (*models.Referral, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	referral, err := fn(c.Request.Context(), id)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, referral)
}

// GatewayConfig handles GET /api/admin/payment-gateway. Secrets are never returned.
func (h *AdminHandler) GatewayConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.GatewayConfig())
}

// UpdateGatewayConfig handles PUT /api/admin/payment-gateway. Empty fields keep their value.
func (h *AdminHandler) UpdateGatewayConfig(c *gin.Context) {
	var req UpdateGatewayRequest
	if !bindJSON(c, &req) {
		return
	}
	cfg := h.gateway.UpdateGatewayConfig(mercadopago.ConfigUpdate{
		AccessToken:   req.AccessToken,
		PublicKey:     req.PublicKey,
		WebhookSecret: req.WebhookSecret,
	})
	c.JSON(http.StatusOK, cfg)
}

// CreatePortfolioItem handles POST /api/admin/portfolio
func (h *AdminHandler) CreatePortfolioItem(c *gin.Context) {
	var req CreatePortfolioRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.portfolio.CreateItem(c.Request.Context(), portfolio.CreateItemInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Technologies: req.Technologies,
		ImageURL:     req.ImageURL,
		DemoURL:      req.DemoURL,
		CompletedAt:  req.CompletedAt,
		Featured:     req.Featured,
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

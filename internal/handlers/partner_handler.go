package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
)

// PartnerLedger is the partner service as seen by HTTP
type PartnerLedger interface {
	CreatePartner(ctx context.Context, userID uint, commissionRate *models.Money) (*models.Partner, error)
	GetPartner(ctx context.Context, userID uint) (*models.Partner, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)
	UpdateCommissionRate(ctx context.Context, partnerID uint, rate models.Money) (*models.Partner, error)
}

// ReferralLister returns a partner's enriched referrals
type ReferralLister interface {
	ListReferrals(ctx context.Context, partnerID uint) ([]models.ReferralView, error)
}

// PartnerStatsReader computes partner statistics
type PartnerStatsReader interface {
	GetPartnerStats(ctx context.Context, partnerID uint) (*models.PartnerStats, error)
}

// PartnerHandler serves the partner dashboard and partner administration
type PartnerHandler struct {
	partners  PartnerLedger
	referrals ReferralLister
	stats     PartnerStatsReader
}

func NewPartnerHandler(partners PartnerLedger, referrals ReferralLister, stats PartnerStatsReader) *PartnerHandler {
	return &PartnerHandler{partners: partners, referrals: referrals, stats: stats}
}

// CreatePartnerRequest promotes an existing user to partner
type CreatePartnerRequest struct {
	UserID         uint          `json:"userId" binding:"required"`
	CommissionRate *models.Money `json:"commissionRate" binding:"omitempty,percent"`
}

// UpdateCommissionRequest sets a partner's commission percentage
type UpdateCommissionRequest struct {
	CommissionRate *models.Money `json:"commissionRate" binding:"required,percent"`
}

// Me handles GET /api/partners/me
func (h *PartnerHandler) Me(c *gin.Context) {
	partner, ok := h.currentPartner(c)
	if !ok {
		return
	}

	stats, err := h.stats.GetPartnerStats(c.Request.Context(), partner.ID)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewPartnerProfile(partner, stats))
}

// Referrals handles GET /api/partners/referrals
func (h *PartnerHandler) Referrals(c *gin.Context) {
	partner, ok := h.currentPartner(c)
	if !ok {
		return
	}

	referrals, err := h.referrals.ListReferrals(c.Request.Context(), partner.ID)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, referrals)
}

// Create handles POST /api/partners
func (h *PartnerHandler) Create(c *gin.Context) {
	var req CreatePartnerRequest
	if !bindJSON(c, &req) {
		return
	}

	partner, err := h.partners.CreatePartner(c.Request.Context(), req.UserID, req.CommissionRate)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, partner)
}

// List handles GET /api/partners
func (h *PartnerHandler) List(c *gin.Context) {
	partners, err := h.partners.ListPartners(c.Request.Context())
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

// UpdateCommission handles PUT /api/partners/:id/commission
func (h *PartnerHandler) UpdateCommission(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateCommissionRequest
	if !bindJSON(c, &req) {
		return
	}

	partner, err := h.partners.UpdateCommissionRate(c.Request.Context(), id, *req.CommissionRate)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

func (h *PartnerHandler) currentPartner(c *gin.Context) (*models.Partner, bool) {
	actor := middleware.CurrentActor(c)
	partner, err := h.partners.GetPartner(c.Request.Context(), actor.UserID)
	if err != nil {
		apperrors.HandleError(c, err)
		return nil, false
	}
	return partner, true
}

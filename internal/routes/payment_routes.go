package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/handlers"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
)

// RegisterPaymentRoutes sets up checkout routes and the unauthenticated gateway callback
func RegisterPaymentRoutes(router *gin.Engine, h *handlers.PaymentHandler, auth gin.HandlerFunc) {
	// Gateway callbacks carry no bearer token; the service verifies the signature
	router.POST("/api/payments/webhook", h.Webhook)

	payments := router.Group("/api/payments", auth)
	{
		payments.GET("", h.List)
		payments.POST("/create", middleware.RequireCapability(models.CapCreateOwnPayments), h.Create)
	}
}

package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/handlers"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/ws"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Partners      *handlers.PartnerHandler
	Projects      *handlers.ProjectHandler
	Tickets       *handlers.TicketHandler
	Notifications *handlers.NotificationHandler
	Payments      *handlers.PaymentHandler
	Admin         *handlers.AdminHandler
	Public        *handlers.PublicHandler
	WebSocket     *ws.Handler
}

// Dependencies are what the router needs besides the handlers
type Dependencies struct {
	Security    config.SecurityConfig
	Production  bool
	Auth        *middleware.TokenAuthenticator
	RateLimiter *middleware.RateLimiter
	Handlers    Handlers
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with global middleware and every route group
func NewRouter(deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.Metrics(),
		middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(deps.Security, deps.Production)),
		cors.New(cors.Config{
			AllowOrigins:     deps.Security.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	h := deps.Handlers
	router.GET("/health", h.Public.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", h.WebSocket.ServeWS)

	auth := middleware.AuthMiddleware(deps.Auth)

	RegisterAuthRoutes(router, h.Auth, auth, deps.RateLimiter)
	RegisterPublicRoutes(router, h.Public, deps.RateLimiter)

	api := router.Group("/api")
	api.Use(auth)
	{
		users := api.Group("/users", middleware.RequireCapability(models.CapManageUsers))
		{
			users.GET("", h.Users.ListUsers)
			users.PUT("/:id", h.Users.UpdateUser)
		}

		partners := api.Group("/partners")
		{
			partners.GET("/me", middleware.RequireRole(models.RolePartner), h.Partners.Me)
			partners.GET("/referrals", middleware.RequireCapability(models.CapViewOwnReferrals), h.Partners.Referrals)
			partners.GET("", middleware.RequireCapability(models.CapManagePartners), h.Partners.List)
			partners.POST("", middleware.RequireCapability(models.CapManagePartners), h.Partners.Create)
			partners.PUT("/:id/commission", middleware.RequireCapability(models.CapManagePartners), h.Partners.UpdateCommission)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", h.Projects.List)
			projects.GET("/:id", h.Projects.Get)
			projects.POST("", middleware.RequireCapability(models.CapCreateOwnProjects), h.Projects.Create)
			projects.PUT("/:id", h.Projects.Update)
		}

		tickets := api.Group("/tickets")
		{
			tickets.GET("", h.Tickets.List)
			tickets.POST("", h.Tickets.Create)
			tickets.PUT("/:id", h.Tickets.Update)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.PUT("/:id/read", h.Notifications.MarkRead)
		}

		RegisterAdminRoutes(api, h.Admin)
	}

	RegisterPaymentRoutes(router, h.Payments, auth)

	return router
}

// RegisterAuthRoutes mounts sign-up, login and the current-user endpoint
func RegisterAuthRoutes(router *gin.Engine, h *handlers.AuthHandler, auth gin.HandlerFunc, limiter *middleware.RateLimiter) {
	group := router.Group("/api/auth")
	{
		group.POST("/register", limiter.AuthRateLimiterMiddleware(), h.Register)
		group.POST("/login", limiter.AuthRateLimiterMiddleware(), h.Login)
		group.GET("/me", auth, h.Me)
	}
}

// RegisterPublicRoutes mounts the unauthenticated site endpoints
func RegisterPublicRoutes(router *gin.Engine, h *handlers.PublicHandler, limiter *middleware.RateLimiter) {
	public := router.Group("/api")
	{
		public.POST("/contact", limiter.IPRateLimiterMiddleware(), h.Contact)
		public.GET("/portfolio", h.Portfolio)
	}
}

// RegisterAdminRoutes mounts the admin dashboard under an authenticated group
func RegisterAdminRoutes(api *gin.RouterGroup, h *handlers.AdminHandler) {
	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/stats", middleware.RequireCapability(models.CapViewAdminStats), h.Stats)
		admin.POST("/referrals/:id/convert", middleware.RequireCapability(models.CapManageReferrals), h.ConvertReferral)
		admin.POST("/referrals/:id/settle", middleware.RequireCapability(models.CapManageReferrals), h.SettleReferral)
		admin.GET("/payment-gateway", middleware.RequireCapability(models.CapConfigureGateway), h.GatewayConfig)
		admin.PUT("/payment-gateway", middleware.RequireCapability(models.CapConfigureGateway), h.UpdateGatewayConfig)
		admin.POST("/portfolio", middleware.RequireCapability(models.CapManagePortfolio), h.CreatePortfolioItem)
	}
}

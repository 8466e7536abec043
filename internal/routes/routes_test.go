package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/database/dbtest"
	"github.com/softwarepar/backend/internal/handlers"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/security"
	"github.com/softwarepar/backend/internal/services/email"
	"github.com/softwarepar/backend/internal/services/notification"
	"github.com/softwarepar/backend/internal/services/partner"
	"github.com/softwarepar/backend/internal/services/payment"
	"github.com/softwarepar/backend/internal/services/payment/providers/mercadopago"
	"github.com/softwarepar/backend/internal/services/portfolio"
	"github.com/softwarepar/backend/internal/services/project"
	"github.com/softwarepar/backend/internal/services/referral"
	"github.com/softwarepar/backend/internal/services/stats"
	"github.com/softwarepar/backend/internal/services/ticket"
	"github.com/softwarepar/backend/internal/services/user"
	"github.com/softwarepar/backend/internal/utils"
	"github.com/softwarepar/backend/internal/ws"
)

var seedConfig = config.SeedConfig{
	Enabled:         true,
	AdminPassword:   "admin123",
	ClientPassword:  "cliente123",
	PartnerPassword: "partner123",
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	db := dbtest.New(t)

	hub := ws.NewHub(logger)
	mailer := email.NewEmailService(config.SMTPConfig{}, "http://localhost:5173", logger)
	tokens := utils.NewJWTManager("test-secret", time.Hour)

	notifications := notification.NewNotificationService(db, hub, logger)
	partners := partner.NewPartnerService(db, logger)
	referrals := referral.NewReferralService(db, notifications, mailer, logger)
	users := user.NewUserService(db, user.Dependencies{
		Hasher:    utils.NewBcryptHasher(bcrypt.MinCost),
		Tokens:    tokens,
		Policy:    utils.DefaultPasswordPolicy(6),
		Partners:  partners,
		Referrals: referrals,
		Mailer:    mailer,
	}, logger)
	projects := project.NewProjectService(db, referrals, notifications, logger)
	statsSvc := stats.NewStatsService(db)
	portfolioSvc := portfolio.NewPortfolioService(db)
	gateway := mercadopago.NewClient(mercadopago.Config{PublicKey: "TEST-public", AccessToken: "TEST-secret"})
	payments := payment.NewPaymentService(db, gateway, payment.Options{
		Referrals: referrals,
		Notifier:  notifications,
	}, logger)

	sqlDB, err := db.DB()
	require.NoError(t, err)

	auth := middleware.NewTokenAuthenticator(tokens, users)
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{IPRate: 1000, IPBurst: 1000, AuthRate: 1000, AuthBurst: 1000})
	t.Cleanup(limiter.Stop)

	router := NewRouter(Dependencies{
		Security:    config.SecurityConfig{HSTSMaxAge: time.Hour, CORSAllowedOrigins: []string{"http://localhost:5173"}},
		Auth:        auth,
		RateLimiter: limiter,
		Logger:      logger,
		Handlers: Handlers{
			Auth:          handlers.NewAuthHandler(users, security.NewLoginGuard(security.DefaultLoginGuardConfig())),
			Users:         handlers.NewUserHandler(users),
			Partners:      handlers.NewPartnerHandler(partners, referrals, statsSvc),
			Projects:      handlers.NewProjectHandler(projects),
			Tickets:       handlers.NewTicketHandler(ticket.NewTicketService(db, logger)),
			Notifications: handlers.NewNotificationHandler(notifications),
			Payments:      handlers.NewPaymentHandler(payments),
			Admin:         handlers.NewAdminHandler(statsSvc, referrals, payments, portfolioSvc),
			Public:        handlers.NewPublicHandler(mailer, portfolioSvc, sqlDB, logger),
			WebSocket:     ws.NewHandler(hub, auth, nil, logger),
		},
	})

	require.NoError(t, users.Seed(context.Background(), seedConfig))
	return &testServer{db: db, router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestPartnerRegistrationScenario(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "p1@x.com", "password": "secret1", "fullName": "Partner One", "role": "partner",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered struct {
		User    models.User `json:"user"`
		Token   string      `json:"token"`
		Message string      `json:"message"`
	}
	decode(t, w, &registered)
	assert.Equal(t, models.RolePartner, registered.User.Role)
	assert.NotEmpty(t, registered.Token)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodGet, "/api/partners/referrals", registered.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/partners/me", registered.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]interface{}
	decode(t, w, &profile)
	assert.Regexp(t, `^PAR\d+[A-Z0-9]{4}$`, profile["referralCode"])
	assert.Equal(t, "25.00", profile["commissionRate"])
	assert.Equal(t, "0.00", profile["totalEarnings"])
	assert.EqualValues(t, 0, profile["activeReferrals"])
	assert.EqualValues(t, 0, profile["closedSales"])
	assert.EqualValues(t, 0, profile["conversionRate"])
}

func TestAdminCannotCreateDuplicatePartner(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")

	var existing models.Partner
	require.NoError(t, s.db.Joins("JOIN users ON users.id = partners.user_id").
		Where("users.email = ?", "partner@test.com").Take(&existing).Error)

	var before int64
	require.NoError(t, s.db.Model(&models.Partner{}).Count(&before).Error)

	w := s.do(t, http.MethodPost, "/api/partners", admin, gin.H{"userId": existing.UserID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")

	var after int64
	require.NoError(t, s.db.Model(&models.Partner{}).Count(&after).Error)
	assert.Equal(t, before, after)

	w = s.do(t, http.MethodPost, "/api/partners", admin, gin.H{"userId": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/partners", admin, gin.H{"userId": existing.UserID, "commissionRate": "150"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "commissionRate")
}

func TestUpdateCommissionRate(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")

	var p models.Partner
	require.NoError(t, s.db.Joins("JOIN users ON users.id = partners.user_id").
		Where("users.email = ?", "partner@test.com").Take(&p).Error)
	path := "/api/partners/" + itoa(p.ID) + "/commission"

	w := s.do(t, http.MethodPut, path, admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "commissionRate")

	var stored models.Partner
	require.NoError(t, s.db.First(&stored, p.ID).Error)
	assert.Equal(t, "25.00", stored.CommissionRate.String())

	w = s.do(t, http.MethodPut, path, admin, gin.H{"commissionRate": "101"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, path, admin, gin.H{"commissionRate": "30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, s.db.First(&stored, p.ID).Error)
	assert.Equal(t, "30.00", stored.CommissionRate.String())

	// an explicit zero is a valid rate
	w = s.do(t, http.MethodPut, path, admin, gin.H{"commissionRate": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, s.db.First(&stored, p.ID).Error)
	assert.Equal(t, "0.00", stored.CommissionRate.String())
}

func TestAdminPromotesClientToPartner(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")

	var client models.User
	require.NoError(t, s.db.Where("email = ?", "cliente@test.com").Take(&client).Error)

	w := s.do(t, http.MethodPost, "/api/partners", admin, gin.H{"userId": client.ID, "commissionRate": "10.5"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]interface{}
	decode(t, w, &created)
	assert.Equal(t, "10.50", created["commissionRate"])
	assert.Equal(t, "0.00", created["totalEarnings"])
}

func TestReferralLifecycleThroughTheAPI(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")
	partnerToken := s.login(t, "partner@test.com", "partner123")

	var p models.Partner
	require.NoError(t, s.db.Joins("JOIN users ON users.id = partners.user_id").
		Where("users.email = ?", "partner@test.com").Take(&p).Error)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "buyer@x.com", "password": "secret1", "fullName": "Buyer", "role": "client", "referralCode": p.ReferralCode,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var registered struct {
		Token string `json:"token"`
	}
	decode(t, w, &registered)

	w = s.do(t, http.MethodPost, "/api/projects", registered.Token, gin.H{"name": "Shop", "price": "1000.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Project
	decode(t, w, &created)
	require.NotNil(t, created.PartnerID)
	assert.Equal(t, p.ID, *created.PartnerID)

	w = s.do(t, http.MethodGet, "/api/partners/referrals", partnerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []map[string]interface{}
	decode(t, w, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "pending", views[0]["status"])
	assert.Equal(t, "Shop", views[0]["projectName"])

	// Clients may not move their own project forward
	w = s.do(t, http.MethodPut, "/api/projects/"+itoa(created.ID), registered.Token, gin.H{"status": "in_progress"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/projects/"+itoa(created.ID), admin, gin.H{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ref models.Referral
	require.NoError(t, s.db.Where("partner_id = ?", p.ID).Take(&ref).Error)
	assert.Equal(t, models.ReferralStatusConverted, ref.Status)
	assert.Equal(t, "250.00", ref.CommissionAmount.String())

	w = s.do(t, http.MethodPost, "/api/admin/referrals/"+itoa(ref.ID)+"/convert", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/referrals/"+itoa(ref.ID)+"/settle", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/admin/referrals/"+itoa(ref.ID)+"/settle", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/partners/me", partnerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile map[string]interface{}
	decode(t, w, &profile)
	assert.Equal(t, "250.00", profile["totalEarnings"])
	assert.EqualValues(t, 1, profile["closedSales"])
	assert.EqualValues(t, 100, profile["conversionRate"])

	w = s.do(t, http.MethodGet, "/api/notifications", partnerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []models.Notification
	decode(t, w, &inbox)
	assert.Len(t, inbox, 2)
}

func TestRegistrationValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "not-an-email", "password": "123", "fullName": "A", "role": "admin",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	decode(t, w, &body)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Contains(t, body.Error.Details, "email")
	assert.Contains(t, body.Error.Details, "password")
	assert.Contains(t, body.Error.Details, "fullName")
	assert.Equal(t, "must be client or partner", body.Error.Details["role"])

	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "cliente@test.com", "password": "secret1", "fullName": "Again", "role": "client",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")

	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "admin@softwarepar.lat", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var client models.User
	require.NoError(t, s.db.Where("email = ?", "cliente@test.com").Take(&client).Error)
	clientToken := s.login(t, "cliente@test.com", "cliente123")

	w = s.do(t, http.MethodPut, "/api/users/"+itoa(client.ID), admin, gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "cliente@test.com", "password": "cliente123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/auth/me", clientToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "partner@test.com", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "partner@test.com", "password": "partner123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// other accounts are unaffected
	s.login(t, "cliente@test.com", "cliente123")
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)
	client := s.login(t, "cliente@test.com", "cliente123")
	partnerToken := s.login(t, "partner@test.com", "partner123")

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/stats", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/admin/stats", client, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/users", partnerToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/partners/me", client, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/projects", partnerToken, gin.H{"name": "x"}).Code)

	w := s.do(t, http.MethodGet, "/api/auth/me", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"cliente@test.com"`)
}

func TestAdminDashboard(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")

	w := s.do(t, http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot map[string]interface{}
	decode(t, w, &snapshot)
	assert.EqualValues(t, 3, snapshot["totalUsers"])
	assert.EqualValues(t, 1, snapshot["activePartners"])
	assert.Equal(t, "0.00", snapshot["monthlyRevenue"])

	w = s.do(t, http.MethodGet, "/api/admin/payment-gateway", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"TEST-public","hasAccessToken":true,"hasWebhookSecret":false}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "TEST-secret")

	w = s.do(t, http.MethodPut, "/api/admin/payment-gateway", admin, gin.H{"webhookSecret": "whsec"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"TEST-public","hasAccessToken":true,"hasWebhookSecret":true}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/admin/portfolio", admin, gin.H{
		"title": "Landing Page", "description": "Marketing site", "category": "web",
		"technologies": []string{"react", "go"}, "featured": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/portfolio", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []map[string]interface{}
	decode(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "landing-page", items[0]["slug"])
}

func TestTicketsAndNotifications(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@softwarepar.lat", "admin123")
	client := s.login(t, "cliente@test.com", "cliente123")
	partnerToken := s.login(t, "partner@test.com", "partner123")

	w := s.do(t, http.MethodPost, "/api/tickets", client, gin.H{"title": "Bug", "description": "Broken button"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Ticket
	decode(t, w, &created)
	assert.Equal(t, models.TicketPriorityMedium, created.Priority)

	w = s.do(t, http.MethodPost, "/api/tickets", client, gin.H{"title": "Bug", "description": "x", "priority": "panic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/tickets/"+itoa(created.ID), partnerToken, gin.H{"status": "closed"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/tickets/"+itoa(created.ID), admin, gin.H{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/tickets", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Ticket
	decode(t, w, &all)
	require.Len(t, all, 1)
	assert.Equal(t, models.TicketStatusResolved, all[0].Status)

	var clientUser models.User
	require.NoError(t, s.db.Where("email = ?", "cliente@test.com").Take(&clientUser).Error)
	w = s.do(t, http.MethodPost, "/api/projects", admin, gin.H{"name": "App", "price": "500", "clientId": clientUser.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var proj models.Project
	decode(t, w, &proj)

	w = s.do(t, http.MethodPut, "/api/projects/"+itoa(proj.ID), admin, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/notifications", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []models.Notification
	decode(t, w, &inbox)
	require.NotEmpty(t, inbox)

	w = s.do(t, http.MethodPut, "/api/notifications/"+itoa(inbox[0].ID)+"/read", partnerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPut, "/api/notifications/"+itoa(inbox[0].ID)+"/read", client, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	contact := gin.H{
		"fullName": "Ana", "email": "ana@x.com", "message": "I need a new website", "acceptTerms": false,
	}
	w = s.do(t, http.MethodPost, "/api/contact", "", contact)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "acceptTerms")

	contact["acceptTerms"] = true
	w = s.do(t, http.MethodPost, "/api/contact", "", contact)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/softwarepar/backend/internal/config"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/handlers"
	"github.com/softwarepar/backend/internal/jobs"
	"github.com/softwarepar/backend/internal/logging"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/queue"
	"github.com/softwarepar/backend/internal/routes"
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

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(cfg.Database, logging.GormLogLevel(cfg.Environment, cfg.Database.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobQueue, closeQueue, err := newQueue(cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	mailer := email.NewEmailService(cfg.SMTP, cfg.FrontendURL, logger)
	tokens := utils.NewJWTManager(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	securityCfg := cfg.SecurityConfig()

	notifications := notification.NewNotificationService(db, hub, logger)
	partners := partner.NewPartnerService(db, logger)
	referrals := referral.NewReferralService(db, notifications, mailer, logger)
	users := user.NewUserService(db, user.Dependencies{
		Hasher:    utils.NewBcryptHasher(bcrypt.DefaultCost),
		Tokens:    tokens,
		Policy:    utils.DefaultPasswordPolicy(securityCfg.PasswordMinLength),
		Partners:  partners,
		Referrals: referrals,
		Mailer:    mailer,
	}, logger)
	projects := project.NewProjectService(db, referrals, notifications, logger)
	tickets := ticket.NewTicketService(db, logger)
	statsSvc := stats.NewStatsService(db)
	portfolioSvc := portfolio.NewPortfolioService(db)

	settlement := jobs.RegisterAllJobHandlers(jobQueue, referrals, statsSvc, logger)

	gateway := mercadopago.NewClient(mercadopago.Config{
		AccessToken:   cfg.MercadoPago.AccessToken,
		PublicKey:     cfg.MercadoPago.PublicKey,
		WebhookSecret: cfg.MercadoPago.WebhookSecret,
		BaseURL:       cfg.MercadoPago.BaseURL,
	})
	payments := payment.NewPaymentService(db, gateway, payment.Options{
		Referrals:   referrals,
		Settlements: settlement,
		Notifier:    notifications,
		FrontendURL: cfg.FrontendURL,
		WebhookURL:  strings.TrimRight(cfg.PublicURL, "/") + "/api/payments/webhook",
	}, logger)

	if cfg.Seed.Enabled {
		if err := users.Seed(ctx, cfg.Seed); err != nil {
			return fmt.Errorf("failed to seed data: %w", err)
		}
	}

	worker := queue.NewWorker(jobQueue, cfg.Queue.Workers, cfg.Queue.PollInterval, logger)
	if err := jobs.ScheduleRecurringJobs(worker); err != nil {
		return fmt.Errorf("failed to schedule recurring jobs: %w", err)
	}
	worker.Start(ctx)
	defer worker.Stop()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	auth := middleware.NewTokenAuthenticator(tokens, users)
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()
	loginGuard := security.NewLoginGuard(security.LoginGuardConfig{
		MaxFailuresPerEmail: cfg.RateLimit.LoginMaxFailures,
		MaxFailuresPerIP:    cfg.RateLimit.LoginIPMaxFailures,
		WindowDuration:      time.Duration(cfg.RateLimit.LoginWindowMins) * time.Minute,
		LockoutDuration:     time.Duration(cfg.RateLimit.LoginLockoutMins) * time.Minute,
	})

	router := routes.NewRouter(routes.Dependencies{
		Security:    securityCfg,
		Production:  cfg.IsProduction(),
		Auth:        auth,
		RateLimiter: limiter,
		Logger:      logger,
		Handlers: routes.Handlers{
			Auth:          handlers.NewAuthHandler(users, loginGuard),
			Users:         handlers.NewUserHandler(users),
			Partners:      handlers.NewPartnerHandler(partners, referrals, statsSvc),
			Projects:      handlers.NewProjectHandler(projects),
			Tickets:       handlers.NewTicketHandler(tickets),
			Notifications: handlers.NewNotificationHandler(notifications),
			Payments:      handlers.NewPaymentHandler(payments),
			Admin:         handlers.NewAdminHandler(statsSvc, referrals, payments, portfolioSvc),
			Public:        handlers.NewPublicHandler(mailer, portfolioSvc, sqlDB, logger),
			WebSocket:     ws.NewHandler(hub, auth, securityCfg.CORSAllowedOrigins, logger),
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

// newQueue builds the job queue on the configured backend
func newQueue(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*queue.Queue, func(), error) {
	if cfg.Queue.Driver != "redis" {
		return queue.NewQueue(queue.NewDBBackend(db), logger), func() {}, nil
	}

	client, err := queue.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("using redis job queue")
	return queue.NewQueue(queue.NewRedisBackend(client, db), logger), func() { _ = client.Close() }, nil
}

package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/database"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/payment/providers/mercadopago"
	"github.com/softwarepar/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound  = apperrors.NotFound("project", "Project not found")
	ErrPaymentNotFound  = apperrors.NotFound("payment", "Payment not found")
	ErrNotAllowed       = apperrors.Forbidden("Only the project owner can pay for it")
	ErrInvalidAmount    = apperrors.BadRequest("payment", "Amount must be greater than zero")
	ErrInvalidSignature = apperrors.Unauthorized("Invalid webhook signature")
)

// Gateway is the payment provider the service charges through
type Gateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentInfo, error)
	VerifySignature(signature, requestID, dataID string) error
	PublicConfig() mercadopago.PublicConfig
	UpdateConfig(update mercadopago.ConfigUpdate)
}

// ReferralTrigger advances the referral of a paid project
type ReferralTrigger interface {
	FindByProject(ctx context.Context, projectID uint) (*models.Referral, error)
	ConvertForProject(ctx context.Context, projectID uint) (*models.Referral, error)
}

// SettlementScheduler queues commission settlement for a converted referral
type SettlementScheduler interface {
	ScheduleSettlement(ctx context.Context, referralID uint) error
}

// Notifier delivers in-app notifications
type Notifier interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Payer identifies who is checking out
type Payer struct {
	Email string
	Name  string
}

// CreatePaymentInput holds the fields accepted when starting a payment
type CreatePaymentInput struct {
	ProjectID   uint
	Amount      models.Money
	Description string
}

// CreatePaymentResult is the stored payment plus the checkout links
type CreatePaymentResult struct {
	Payment          *models.Payment `json:"payment"`
	PreferenceID     string          `json:"preferenceId"`
	InitPoint        string          `json:"initPoint"`
	SandboxInitPoint string          `json:"sandboxInitPoint"`
}

// WebhookEvent is a gateway notification reduced to what the service needs
type WebhookEvent struct {
	Type      string
	DataID    string
	Signature string
	RequestID string
}

// PaymentService handles payment operations
type PaymentService struct {
	db          *gorm.DB
	gateway     Gateway
	referrals   ReferralTrigger
	settlements SettlementScheduler
	notifier    Notifier
	frontendURL string
	webhookURL  string
	logger      *zap.Logger
}

// Options wires the optional collaborators of the payment service
type Options struct {
	Referrals   ReferralTrigger
	Settlements SettlementScheduler
	Notifier    Notifier
	FrontendURL string
	WebhookURL  string
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB, gateway Gateway, opts Options, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		referrals:   opts.Referrals,
		settlements: opts.Settlements,
		notifier:    opts.Notifier,
		frontendURL: opts.FrontendURL,
		webhookURL:  opts.WebhookURL,
		logger:      logger,
	}
}

// CreatePayment opens a checkout for a project and records a pending payment
func (s *PaymentService) CreatePayment(ctx context.Context, actor models.Actor, payer Payer, input CreatePaymentInput) (*CreatePaymentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, input.ProjectID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("error finding project: %w", err)
	}
	if !actor.IsAdmin() && project.ClientID != actor.UserID {
		return nil, ErrNotAllowed
	}

	description := input.Description
	if description == "" {
		description = project.Name
	}
	amount := input.Amount.Round2()
	reference := utils.GenerateReference("PAY")

	unitPrice, _ := amount.Float64()
	pref, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:         fmt.Sprintf("project-%d", project.ID),
			Title:      description,
			Quantity:   1,
			UnitPrice:  unitPrice,
			CurrencyID: "USD",
		}},
		Payer:             mercadopago.Payer{Name: payer.Name, Email: payer.Email},
		ExternalReference: reference,
		NotificationURL:   s.webhookURL,
		BackURLs: mercadopago.BackURLs{
			Success: s.frontendURL + "/dashboard?payment=success",
			Failure: s.frontendURL + "/dashboard?payment=failure",
			Pending: s.frontendURL + "/dashboard?payment=pending",
		},
		AutoReturn: "approved",
	})
	if err != nil {
		s.logger.Error("failed to create payment preference", zap.Uint("project_id", project.ID), zap.Error(err))
		return nil, apperrors.ExternalService(err, "payment", "Could not create payment")
	}

	payment := models.Payment{
		ProjectID:    project.ID,
		Amount:       amount,
		Description:  description,
		Status:       models.PaymentStatusPending,
		Provider:     models.PaymentProviderMercadoPago,
		Reference:    reference,
		PreferenceID: pref.ID,
		GatewayData: models.JSON{
			"init_point":         pref.InitPoint,
			"sandbox_init_point": pref.SandboxInitPoint,
		},
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("error creating payment record: %w", err)
	}

	s.logger.Info("payment created",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("project_id", project.ID),
		zap.String("reference", reference),
		zap.String("amount", amount.String()),
	)
	return &CreatePaymentResult{
		Payment:          &payment,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	}, nil
}

// HandleWebhook verifies a gateway notification and applies the payment's status
func (s *PaymentService) HandleWebhook(ctx context.Context, event WebhookEvent) error {
	if event.Type != "payment" || event.DataID == "" {
		s.logger.Debug("ignoring webhook", zap.String("type", event.Type))
		return nil
	}
	if err := s.gateway.VerifySignature(event.Signature, event.RequestID, event.DataID); err != nil {
		s.logger.Warn("rejected webhook", zap.String("data_id", event.DataID), zap.Error(err))
		return ErrInvalidSignature
	}

	info, err := s.gateway.GetPayment(ctx, event.DataID)
	if err != nil {
		return apperrors.ExternalService(err, "payment", "Could not verify payment")
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("reference = ?", info.ExternalReference).Take(&payment).Error; err != nil {
		if database.IsNotFound(err) {
			s.logger.Warn("webhook for unknown payment", zap.String("reference", info.ExternalReference))
			return ErrPaymentNotFound
		}
		return fmt.Errorf("error finding payment: %w", err)
	}

	status := models.PaymentStatusPending
	switch {
	case info.Approved():
		status = models.PaymentStatusCompleted
	case info.Failed():
		status = models.PaymentStatusFailed
	}

	updates := map[string]interface{}{
		"status":         status,
		"transaction_id": fmt.Sprintf("%d", info.ID),
		"payment_method": info.PaymentMethodID,
		"gateway_data": models.JSON{
			"status":        info.Status,
			"status_detail": info.StatusDetail,
			"date_approved": info.DateApproved,
		},
		"updated_at": time.Now().UTC(),
	}
	// A completed payment is final; redelivered notifications must not re-run completion.
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("error updating payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	s.logger.Info("payment status updated",
		zap.Uint("payment_id", payment.ID),
		zap.String("status", string(status)),
		zap.String("gateway_status", info.Status),
	)
	if status == models.PaymentStatusCompleted {
		payment.Status = status
		s.onPaymentCompleted(ctx, &payment)
	}
	return nil
}

// onPaymentCompleted converts the project's referral and queues its settlement
func (s *PaymentService) onPaymentCompleted(ctx context.Context, payment *models.Payment) {
	var project models.Project
	if err := s.db.WithContext(ctx).Select("id", "name", "client_id").Take(&project, payment.ProjectID).Error; err == nil && s.notifier != nil {
		n := &models.Notification{
			UserID:  project.ClientID,
			Title:   "Payment received",
			Message: fmt.Sprintf("We received your payment of $%s for %s", payment.Amount.String(), project.Name),
			Type:    models.NotificationTypeSuccess,
		}
		if err := s.notifier.Create(ctx, n); err != nil {
			s.logger.Error("failed to notify payment", zap.Uint("payment_id", payment.ID), zap.Error(err))
		}
	}

	if s.referrals == nil {
		return
	}
	if _, err := s.referrals.ConvertForProject(ctx, payment.ProjectID); err != nil {
		s.logger.Error("failed to convert referral", zap.Uint("project_id", payment.ProjectID), zap.Error(err))
		return
	}

	referral, err := s.referrals.FindByProject(ctx, payment.ProjectID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.CodeNotFound {
			s.logger.Error("failed to load referral", zap.Uint("project_id", payment.ProjectID), zap.Error(err))
		}
		return
	}
	if referral.Status != models.ReferralStatusConverted || s.settlements == nil {
		return
	}
	if err := s.settlements.ScheduleSettlement(ctx, referral.ID); err != nil {
		s.logger.Error("failed to schedule settlement", zap.Uint("referral_id", referral.ID), zap.Error(err))
	}
}

// ListPayments returns the payments visible to the actor, newest first
func (s *PaymentService) ListPayments(ctx context.Context, actor models.Actor) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := s.db.WithContext(ctx).Order("payments.created_at DESC, payments.id DESC")
	if !actor.IsAdmin() {
		query = query.Joins("JOIN projects ON projects.id = payments.project_id").
			Where("projects.client_id = ?", actor.UserID)
	}
	if err := query.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	return payments, nil
}

// GatewayConfig returns the gateway configuration without secrets
func (s *PaymentService) GatewayConfig() mercadopago.PublicConfig {
	return s.gateway.PublicConfig()
}

// UpdateGatewayConfig replaces gateway credentials at runtime
func (s *PaymentService) UpdateGatewayConfig(update mercadopago.ConfigUpdate) mercadopago.PublicConfig {
	s.gateway.UpdateConfig(update)
	s.logger.Info("payment gateway configuration updated")
	return s.gateway.PublicConfig()
}

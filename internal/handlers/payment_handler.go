package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/payment"
)

const maxWebhookBody = 64 << 10

// PaymentProcessor is the payment service as seen by HTTP
type PaymentProcessor interface {
	CreatePayment(ctx context.Context, actor models.Actor, payer payment.Payer, input payment.CreatePaymentInput) (*payment.CreatePaymentResult, error)
	HandleWebhook(ctx context.Context, event payment.WebhookEvent) error
	ListPayments(ctx context.Context, actor models.Actor) ([]models.Payment, error)
}

// PaymentHandler handles payment-related requests
type PaymentHandler struct {
	payments PaymentProcessor
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentProcessor) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePaymentRequest starts a checkout for a project
type CreatePaymentRequest struct {
	ProjectID   uint         `json:"projectId" binding:"required"`
	Amount      models.Money `json:"amount" binding:"required,gt=0"`
	Description string       `json:"description" binding:"max=255"`
}

// webhookPayload covers the JSON body the gateway posts
type webhookPayload struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// Create handles POST /api/payments/create
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	current, ok := middleware.CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, middleware.ErrTokenRequired)
		return
	}

	result, err := h.payments.CreatePayment(c.Request.Context(), current.Actor(),
		payment.Payer{Email: current.Email, Name: current.FullName},
		payment.CreatePaymentInput{
			ProjectID:   req.ProjectID,
			Amount:      req.Amount,
			Description: req.Description,
		})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// List handles GET /api/payments
func (h *PaymentHandler) List(c *gin.Context) {
	payments, err := h.payments.ListPayments(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// Webhook handles POST /api/payments/webhook. The id and type come from the
// query string when present, as that is what the gateway signs.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	event := payment.WebhookEvent{
		Type:      firstNonEmpty(c.Query("type"), c.Query("topic")),
		DataID:    firstNonEmpty(c.Query("data.id"), c.Query("id")),
		Signature: c.GetHeader("x-signature"),
		RequestID: c.GetHeader("x-request-id"),
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err == nil && len(body) > 0 {
		var payload webhookPayload
		if json.Unmarshal(body, &payload) == nil {
			if event.Type == "" {
				event.Type = payload.Type
			}
			if event.DataID == "" {
				event.DataID = rawID(payload.Data.ID)
			}
		}
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), event); err != nil {
		// Unknown references are acknowledged so the gateway stops redelivering
		if errors.Is(err, payment.ErrPaymentNotFound) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// rawID accepts both "123" and 123
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

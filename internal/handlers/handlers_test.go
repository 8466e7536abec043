package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) CreatePayment(ctx context.Context, actor models.Actor, payer payment.Payer, input payment.CreatePaymentInput) (*payment.CreatePaymentResult, error) {
	args := m.Called(ctx, actor, payer, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CreatePaymentResult), args.Error(1)
}

func (m *MockPayments) HandleWebhook(ctx context.Context, event payment.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPayments) ListPayments(ctx context.Context, actor models.Actor) ([]models.Payment, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func webhookRouter(p PaymentProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", NewPaymentHandler(p).Webhook)
	return r
}

func postWebhook(r *gin.Engine, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-signature", "ts=1,v1=abc")
	req.Header.Set("x-request-id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookPrefersSignedQueryParameters(t *testing.T) {
	p := &MockPayments{}
	p.On("HandleWebhook", mock.Anything, payment.WebhookEvent{
		Type: "payment", DataID: "123", Signature: "ts=1,v1=abc", RequestID: "req-1",
	}).Return(nil).Once()

	w := postWebhook(webhookRouter(p), "/webhook?type=payment&data.id=123", `{"type":"payment","data":{"id":"999"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	p.AssertExpectations(t)
}

func TestWebhookFallsBackToBody(t *testing.T) {
	p := &MockPayments{}
	p.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(e payment.WebhookEvent) bool {
		return e.Type == "payment" && e.DataID == "456"
	})).Return(nil).Once()

	w := postWebhook(webhookRouter(p), "/webhook", `{"type":"payment","action":"payment.updated","data":{"id":456}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	p.AssertExpectations(t)
}

func TestWebhookErrors(t *testing.T) {
	p := &MockPayments{}
	p.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(e payment.WebhookEvent) bool { return e.DataID == "bad" })).
		Return(payment.ErrInvalidSignature)
	p.On("HandleWebhook", mock.Anything, mock.MatchedBy(func(e payment.WebhookEvent) bool { return e.DataID == "gone" })).
		Return(payment.ErrPaymentNotFound)
	r := webhookRouter(p)

	assert.Equal(t, http.StatusUnauthorized, postWebhook(r, "/webhook?type=payment&data.id=bad", "").Code)
	assert.Equal(t, http.StatusOK, postWebhook(r, "/webhook?type=payment&data.id=gone", "").Code)
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	r := gin.New()
	r.POST("/partners", func(c *gin.Context) {
		var req CreatePartnerRequest
		if !bindJSON(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		body   string
		status int
		field  string
	}{
		{`{"userId": 1, "commissionRate": "25.5"}`, http.StatusNoContent, ""},
		{`{"userId": 1}`, http.StatusNoContent, ""},
		{`{"userId": 1, "commissionRate": "100.01"}`, http.StatusBadRequest, "commissionRate"},
		{`{"userId": 1, "commissionRate": -1}`, http.StatusBadRequest, "commissionRate"},
		{`{"commissionRate": "10"}`, http.StatusBadRequest, "userId"},
		{`{"userId": "one"}`, http.StatusBadRequest, "userId"},
		{`{`, http.StatusBadRequest, "body"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/partners", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, tc.status, w.Code, tc.body)
		if tc.field != "" {
			assert.Contains(t, w.Body.String(), `"`+tc.field+`"`, tc.body)
			assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
		}
	}
}

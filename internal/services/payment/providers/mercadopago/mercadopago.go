package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/softwarepar/backend/internal/utils"
)

const defaultBaseURL = "https://api.mercadopago.com"

var (
	ErrNotConfigured    = errors.New("mercadopago access token is not configured")
	ErrInvalidSignature = errors.New("invalid mercadopago webhook signature")
)

// Config holds the credentials of the Mercado Pago account
type Config struct {
	AccessToken   string
	PublicKey     string
	WebhookSecret string
	BaseURL       string
}

// ConfigUpdate replaces credentials; empty fields are kept as they are
type ConfigUpdate struct {
	AccessToken   string `json:"accessToken"`
	PublicKey     string `json:"publicKey"`
	WebhookSecret string `json:"webhookSecret"`
}

// PublicConfig is the gateway configuration safe to show to administrators
type PublicConfig struct {
	PublicKey        string `json:"publicKey"`
	HasAccessToken   bool   `json:"hasAccessToken"`
	HasWebhookSecret bool   `json:"hasWebhookSecret"`
}

// Item is a checkout line
type Item struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

// Payer identifies the buyer on the checkout page
type Payer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// BackURLs are where the buyer is sent after checkout
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceRequest is the body of POST /checkout/preferences
type PreferenceRequest struct {
	Items             []Item   `json:"items"`
	Payer             Payer    `json:"payer"`
	ExternalReference string   `json:"external_reference"`
	NotificationURL   string   `json:"notification_url,omitempty"`
	BackURLs          BackURLs `json:"back_urls"`
	AutoReturn        string   `json:"auto_return,omitempty"`
}

// Preference is a created checkout
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// PaymentInfo is the subset of GET /v1/payments/{id} the platform uses
type PaymentInfo struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	PaymentMethodID   string  `json:"payment_method_id"`
	PaymentTypeID     string  `json:"payment_type_id"`
	DateApproved      string  `json:"date_approved"`
}

// Approved reports whether the gateway captured the funds
func (p *PaymentInfo) Approved() bool {
	return p.Status == "approved"
}

// Failed reports whether the payment reached a terminal unsuccessful state
func (p *PaymentInfo) Failed() bool {
	switch p.Status {
	case "rejected", "cancelled", "refunded", "charged_back":
		return true
	}
	return false
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// Client talks to the Mercado Pago REST API. Credentials can be replaced at runtime.
type Client struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new Mercado Pago client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UpdateConfig swaps in new credentials
func (c *Client) UpdateConfig(update ConfigUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if update.AccessToken != "" {
		c.cfg.AccessToken = update.AccessToken
	}
	if update.PublicKey != "" {
		c.cfg.PublicKey = update.PublicKey
	}
	if update.WebhookSecret != "" {
		c.cfg.WebhookSecret = update.WebhookSecret
	}
}

// PublicConfig returns the configuration without secrets
func (c *Client) PublicConfig() PublicConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return PublicConfig{
		PublicKey:        c.cfg.PublicKey,
		HasAccessToken:   c.cfg.AccessToken != "",
		HasWebhookSecret: c.cfg.WebhookSecret != "",
	}
}

func (c *Client) snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// CreatePreference creates a checkout preference
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

// GetPayment fetches a payment by gateway id
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	var info PaymentInfo
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifySignature checks the x-signature header of a webhook notification.
// The header has the form "ts=<unix>,v1=<hex hmac>" and signs
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;". Without a webhook
// secret every notification is accepted.
func (c *Client) VerifySignature(signature, requestID, dataID string) error {
	secret := c.snapshot().WebhookSecret
	if secret == "" {
		return nil
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	if !utils.VerifyHMAC(SignatureManifest(dataID, requestID, ts), v1, secret) {
		return ErrInvalidSignature
	}
	return nil
}

// SignatureManifest builds the string Mercado Pago signs for a notification
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	cfg := c.snapshot()
	if cfg.AccessToken == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("mercadopago error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("mercadopago error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

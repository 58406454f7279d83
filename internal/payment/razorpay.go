package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

const razorpayCurrency = "INR"

// RazorpayConfig carries the Razorpay key pair and webhook secret.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// RazorpayProvider creates orders for the client-side checkout widget and
// verifies webhook events.
type RazorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

// Order is the client-facing result of a created Razorpay order.
type Order struct {
	OrderID  string
	Amount   int64
	Currency string
	Credits  int64
}

// NewRazorpayProvider wires a provider from explicit configuration.
func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	return &RazorpayProvider{
		client:        razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateOrder creates an order in minor units with the user id and credit
// quantity attached as order notes. The Razorpay SDK has no context support,
// so the context is accepted for interface symmetry only.
func (provider *RazorpayProvider) CreateOrder(_ context.Context, userID string, amount int64, creditQuantity int64) (Order, error) {
	data := map[string]interface{}{
		"amount":   amount * 100,
		"currency": razorpayCurrency,
		"receipt":  fmt.Sprintf("order_%d", time.Now().UnixNano()),
		"notes": map[string]interface{}{
			"userId":  userID,
			"credits": creditQuantity,
		},
	}
	created, err := provider.client.Order.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	orderID, ok := created["id"].(string)
	if !ok || orderID == "" {
		return Order{}, fmt.Errorf("create order: response is missing an order id")
	}
	orderAmount := amount * 100
	if responded, ok := created["amount"].(float64); ok {
		orderAmount = int64(responded)
	}
	return Order{
		OrderID:  orderID,
		Amount:   orderAmount,
		Currency: razorpayCurrency,
		Credits:  creditQuantity,
	}, nil
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID    string         `json:"id"`
				Notes map[string]any `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook verifies the HMAC-SHA256 signature over the raw body and maps a
// captured payment to a credit grant. Other event types return (nil, nil).
func (provider *RazorpayProvider) ParseWebhook(payload []byte, signatureHeader string) (*CapturedPayment, error) {
	if !utils.VerifyWebhookSignature(string(payload), signatureHeader, provider.webhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event razorpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Event != "payment.captured" {
		return nil, nil
	}

	entity := event.Payload.Payment.Entity
	if entity.ID == "" {
		return nil, fmt.Errorf("%w: payment entity is missing an id", ErrMalformedEvent)
	}
	userID, _ := entity.Notes["userId"].(string)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: payment notes are missing userId", ErrMalformedEvent)
	}
	creditQuantity, err := parseCreditCount(entity.Notes["credits"])
	if err != nil {
		return nil, err
	}

	return &CapturedPayment{
		Provider: ProviderRazorpay,
		EventKey: entity.ID,
		UserID:   userID,
		Credits:  creditQuantity,
	}, nil
}

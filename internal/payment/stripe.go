package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig carries the Stripe credentials and the public base URL used to
// build checkout redirect targets.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PublicBaseURL string
}

// StripeProvider creates hosted checkout sessions and verifies webhook events.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	publicBaseURL string
}

// CheckoutSession is the client-facing result of a created Stripe session.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// NewStripeProvider wires a provider from explicit configuration. The API
// client is owned by the provider; nothing global is mutated.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// CreateCheckoutSession creates a payment-mode checkout session for the given
// amount in whole USD. The user id and the purchased credit quantity travel as
// session metadata and come back in the completed-checkout webhook.
func (provider *StripeProvider) CreateCheckoutSession(ctx context.Context, userID string, amountUSD int64, creditQuantity int64) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(provider.publicBaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(provider.publicBaseURL + "/payment/cancel"),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d RoomAI Credits", creditQuantity)),
					},
					UnitAmount: stripe.Int64(amountUSD * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"userId":  userID,
			"credits": fmt.Sprintf("%d", creditQuantity),
		},
	}
	params.Context = ctx

	session, err := provider.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// ParseWebhook verifies the signature over the raw body and maps a completed
// checkout to a captured payment. Event types other than checkout completion
// return (nil, nil) and should be acknowledged without processing.
func (provider *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (*CapturedPayment, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, provider.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	userID := strings.TrimSpace(session.Metadata["userId"])
	if userID == "" {
		return nil, fmt.Errorf("%w: session metadata is missing userId", ErrMalformedEvent)
	}
	creditQuantity, err := parseCreditCount(session.Metadata["credits"])
	if err != nil {
		return nil, err
	}

	return &CapturedPayment{
		Provider: ProviderStripe,
		EventKey: event.ID,
		UserID:   userID,
		Credits:  creditQuantity,
	}, nil
}

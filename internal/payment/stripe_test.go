package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"
)

const stripeTestSecret = "whsec_test_secret"

// signStripePayload builds a Stripe-Signature header over the raw payload the
// way Stripe's servers do: v1 = HMAC-SHA256(secret, "<timestamp>.<payload>").
func signStripePayload(test *testing.T, payload []byte, secret string, at time.Time) string {
	test.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(test *testing.T, userID string, creditsValue string) []byte {
	test.Helper()
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"metadata": {"userId": %q, "credits": %s}
			}
		}
	}`, stripe.APIVersion, userID, creditsValue))
}

func newTestStripeProvider() *StripeProvider {
	return NewStripeProvider(StripeConfig{
		SecretKey:     "sk_test_key",
		WebhookSecret: stripeTestSecret,
		PublicBaseURL: "https://roomai.example.com/",
	})
}

func TestStripeParseWebhookGrantsFromSessionMetadata(test *testing.T) {
	test.Parallel()
	provider := newTestStripeProvider()
	payload := checkoutCompletedPayload(test, "u1", `"30"`)
	header := signStripePayload(test, payload, stripeTestSecret, time.Now())

	captured, err := provider.ParseWebhook(payload, header)
	if err != nil {
		test.Fatalf("parse webhook: %v", err)
	}
	if captured == nil {
		test.Fatalf("expected captured payment")
	}
	if captured.Provider != ProviderStripe || captured.EventKey != "evt_test_1" || captured.UserID != "u1" || captured.Credits != 30 {
		test.Fatalf("unexpected captured payment: %+v", captured)
	}
}

func TestStripeParseWebhookRejectsBadSignature(test *testing.T) {
	test.Parallel()
	provider := newTestStripeProvider()
	payload := checkoutCompletedPayload(test, "u1", `"30"`)
	header := signStripePayload(test, payload, "whsec_wrong_secret", time.Now())

	captured, err := provider.ParseWebhook(payload, header)
	if !errors.Is(err, ErrInvalidSignature) {
		test.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if captured != nil {
		test.Fatalf("expected no captured payment, got %+v", captured)
	}
}

func TestStripeParseWebhookRejectsTamperedBody(test *testing.T) {
	test.Parallel()
	provider := newTestStripeProvider()
	payload := checkoutCompletedPayload(test, "u1", `"30"`)
	header := signStripePayload(test, payload, stripeTestSecret, time.Now())
	tampered := checkoutCompletedPayload(test, "u1", `"3000"`)

	if _, err := provider.ParseWebhook(tampered, header); !errors.Is(err, ErrInvalidSignature) {
		test.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
}

func TestStripeParseWebhookIgnoresOtherEventTypes(test *testing.T) {
	test.Parallel()
	provider := newTestStripeProvider()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_test_2",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.expired",
		"data": {"object": {"id": "cs_test_2", "object": "checkout.session"}}
	}`, stripe.APIVersion))
	header := signStripePayload(test, payload, stripeTestSecret, time.Now())

	captured, err := provider.ParseWebhook(payload, header)
	if err != nil {
		test.Fatalf("parse webhook: %v", err)
	}
	if captured != nil {
		test.Fatalf("expected ignored event, got %+v", captured)
	}
}

func TestStripeParseWebhookRejectsMissingMetadata(test *testing.T) {
	test.Parallel()
	provider := newTestStripeProvider()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_test_3",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_3", "object": "checkout.session", "metadata": {}}}
	}`, stripe.APIVersion))
	header := signStripePayload(test, payload, stripeTestSecret, time.Now())

	if _, err := provider.ParseWebhook(payload, header); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

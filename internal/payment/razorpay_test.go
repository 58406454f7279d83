package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
)

const razorpayTestSecret = "rzp_webhook_secret"

func signRazorpayPayload(test *testing.T, payload []byte, secret string) string {
	test.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedPaymentPayload(test *testing.T, creditsValue string) []byte {
	test.Helper()
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_test_1",
					"notes": {"userId": "u1", "credits": %s}
				}
			}
		}
	}`, creditsValue))
}

func newTestRazorpayProvider() *RazorpayProvider {
	return NewRazorpayProvider(RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: razorpayTestSecret,
	})
}

func TestRazorpayParseWebhookAcceptsStringCredits(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := capturedPaymentPayload(test, `"30"`)
	signature := signRazorpayPayload(test, payload, razorpayTestSecret)

	captured, err := provider.ParseWebhook(payload, signature)
	if err != nil {
		test.Fatalf("parse webhook: %v", err)
	}
	if captured == nil {
		test.Fatalf("expected captured payment")
	}
	if captured.Provider != ProviderRazorpay || captured.EventKey != "pay_test_1" || captured.UserID != "u1" || captured.Credits != 30 {
		test.Fatalf("unexpected captured payment: %+v", captured)
	}
}

func TestRazorpayParseWebhookAcceptsNumericCredits(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := capturedPaymentPayload(test, "30")
	signature := signRazorpayPayload(test, payload, razorpayTestSecret)

	captured, err := provider.ParseWebhook(payload, signature)
	if err != nil {
		test.Fatalf("parse webhook: %v", err)
	}
	if captured == nil || captured.Credits != 30 {
		test.Fatalf("expected 30 credits, got %+v", captured)
	}
}

func TestRazorpayParseWebhookRejectsBadSignature(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := capturedPaymentPayload(test, `"30"`)
	signature := signRazorpayPayload(test, payload, "some_other_secret")

	captured, err := provider.ParseWebhook(payload, signature)
	if !errors.Is(err, ErrInvalidSignature) {
		test.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if captured != nil {
		test.Fatalf("expected no captured payment, got %+v", captured)
	}
}

func TestRazorpayParseWebhookRejectsTamperedBody(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := capturedPaymentPayload(test, `"30"`)
	signature := signRazorpayPayload(test, payload, razorpayTestSecret)
	tampered := capturedPaymentPayload(test, `"3000"`)

	if _, err := provider.ParseWebhook(tampered, signature); !errors.Is(err, ErrInvalidSignature) {
		test.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
}

func TestRazorpayParseWebhookIgnoresOtherEvents(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := []byte(`{"event": "payment.failed", "payload": {"payment": {"entity": {"id": "pay_test_9"}}}}`)
	signature := signRazorpayPayload(test, payload, razorpayTestSecret)

	captured, err := provider.ParseWebhook(payload, signature)
	if err != nil {
		test.Fatalf("parse webhook: %v", err)
	}
	if captured != nil {
		test.Fatalf("expected ignored event, got %+v", captured)
	}
}

func TestRazorpayParseWebhookRejectsMissingNotes(test *testing.T) {
	test.Parallel()
	provider := newTestRazorpayProvider()
	payload := []byte(`{"event": "payment.captured", "payload": {"payment": {"entity": {"id": "pay_test_2", "notes": {}}}}}`)
	signature := signRazorpayPayload(test, payload, razorpayTestSecret)

	if _, err := provider.ParseWebhook(payload, signature); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestParseCreditCountForms(test *testing.T) {
	test.Parallel()
	if value, err := parseCreditCount(" 30 "); err != nil || value != 30 {
		test.Fatalf("string form: value=%d err=%v", value, err)
	}
	if value, err := parseCreditCount(float64(70)); err != nil || value != 70 {
		test.Fatalf("number form: value=%d err=%v", value, err)
	}
	if _, err := parseCreditCount(nil); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent for nil, got %v", err)
	}
	if _, err := parseCreditCount("thirty"); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent for non-numeric, got %v", err)
	}
	if _, err := parseCreditCount(float64(30.5)); !errors.Is(err, ErrMalformedEvent) {
		test.Fatalf("expected ErrMalformedEvent for fractional number, got %v", err)
	}
}

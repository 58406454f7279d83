package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Provider name selectors accepted by the payment session endpoint.
const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

var (
	// ErrInvalidSignature marks a webhook whose signature does not match the
	// recomputed value over the raw body.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent marks a verified webhook whose payload cannot be
	// mapped to a credit grant.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// CapturedPayment is the normalized successful-payment event a webhook
// reconciler hands to the credits service.
type CapturedPayment struct {
	Provider string
	EventKey string
	UserID   string
	Credits  int64
}

// parseCreditCount accepts the string-or-number forms providers echo back in
// metadata and notes.
func parseCreditCount(value any) (int64, error) {
	switch typed := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: credits %q is not an integer", ErrMalformedEvent, typed)
		}
		return parsed, nil
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("%w: credits %v is not an integer", ErrMalformedEvent, typed)
		}
		return int64(typed), nil
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: credits %q is not an integer", ErrMalformedEvent, typed.String())
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: credits field missing or of unexpected type", ErrMalformedEvent)
	}
}

package credits

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CreditAmount is a non-negative credit balance.
type CreditAmount int64

// PositiveCreditAmount is a strictly positive credit delta.
type PositiveCreditAmount int64

// UserID identifies a balance owner.
type UserID struct {
	value string
}

// EventKey identifies a provider payment event for duplicate detection.
type EventKey struct {
	value string
}

// MetadataJSON stores arbitrary event metadata.
type MetadataJSON struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewEventKey validates and normalizes an event key.
func NewEventKey(raw string) (EventKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EventKey{}, fmt.Errorf("%w: empty value", ErrInvalidEventKey)
	}
	return EventKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key EventKey) String() string {
	return key.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// NewCreditAmount validates a balance value and ensures it is not negative.
func NewCreditAmount(raw int64) (CreditAmount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidCreditAmount)
	}
	return CreditAmount(raw), nil
}

// Int64 returns the raw balance value.
func (amount CreditAmount) Int64() int64 {
	return int64(amount)
}

// NewPositiveCreditAmount validates a delta and ensures it is strictly positive.
func NewPositiveCreditAmount(raw int64) (PositiveCreditAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidCreditAmount)
	}
	return PositiveCreditAmount(raw), nil
}

// Int64 returns the raw delta value.
func (amount PositiveCreditAmount) Int64() int64 {
	return int64(amount)
}

// ToCreditAmount widens the delta into a balance value.
func (amount PositiveCreditAmount) ToCreditAmount() CreditAmount {
	return CreditAmount(amount)
}

// PaymentEvent is the durable record of a reconciled provider payment.
type PaymentEvent struct {
	EventKey     EventKey
	Provider     string
	UserID       UserID
	Credits      PositiveCreditAmount
	MetadataJSON MetadataJSON
}

// NewPaymentEvent validates a payment event record.
func NewPaymentEvent(eventKey EventKey, provider string, userID UserID, creditsGranted PositiveCreditAmount, metadata MetadataJSON) (PaymentEvent, error) {
	if strings.TrimSpace(provider) == "" {
		return PaymentEvent{}, fmt.Errorf("%w: empty provider", ErrInvalidProvider)
	}
	return PaymentEvent{
		EventKey:     eventKey,
		Provider:     provider,
		UserID:       userID,
		Credits:      creditsGranted,
		MetadataJSON: metadata,
	}, nil
}

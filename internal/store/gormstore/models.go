package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserCredit represents the user_credits table: one row per user.
type UserCredit struct {
	UserID    string    `gorm:"primaryKey"`
	Credits   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UserCredit) TableName() string { return "user_credits" }

// PaymentEvent mirrors the payment_events table. The unique event key is what
// makes webhook redelivery a no-op.
type PaymentEvent struct {
	EventID   string         `gorm:"type:uuid;primaryKey"`
	EventKey  string         `gorm:"not null;index:uniq_payment_events_event_key,unique"`
	Provider  string         `gorm:"not null"`
	UserID    string         `gorm:"not null;index:idx_payment_events_user"`
	Credits   int64          `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

func (event *PaymentEvent) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}

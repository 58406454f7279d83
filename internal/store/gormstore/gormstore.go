package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/roomai/pkg/credits"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintPaymentEventKey = "uniq_payment_events_event_key"
	defaultMetadataJSON       = "{}"
	pgUniqueViolationCode     = "23505"
	sqliteConstraintCode      = 19
	errorOperationStore       = "store"
	errorSubjectBalance       = "balance"
	errorSubjectEvent         = "event"
	errorCodeDecrement        = "decrement"
	errorCodeDuplicate        = "duplicate"
	errorCodeGet              = "get"
	errorCodeIncrement        = "increment"
	errorCodeInsert           = "insert"
	errorCodeInsufficient     = "insufficient"
	errorCodeUpsert           = "upsert"
)

// Store implements credits.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the backing tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserCredit{}, &PaymentEvent{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore credits.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// GetCredits reads the balance row. A missing row is reported via the found
// flag, not an error.
func (store *Store) GetCredits(ctx context.Context, userID credits.UserID) (credits.CreditAmount, bool, error) {
	var row UserCredit
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	amount, err := credits.NewCreditAmount(row.Credits)
	if err != nil {
		return 0, false, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	return amount, true, nil
}

// UpsertCredits replaces the full balance value, creating the row on first write.
func (store *Store) UpsertCredits(ctx context.Context, userID credits.UserID, amount credits.CreditAmount) error {
	row := UserCredit{UserID: userID.String(), Credits: amount.Int64()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"credits": amount.Int64()}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return nil
}

// IncrementCredits adds to the balance in a single upsert expression, so
// concurrent increments for the same user cannot lose updates.
func (store *Store) IncrementCredits(ctx context.Context, userID credits.UserID, amount credits.PositiveCreditAmount) error {
	row := UserCredit{UserID: userID.String(), Credits: amount.Int64()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"credits": gorm.Expr("credits + ?", amount.Int64())}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeIncrement, err)
	}
	return nil
}

// DecrementCreditsIfEnough performs the insufficient-funds guard and the
// decrement as one conditional update. Zero affected rows means the user
// either has no row or not enough credits.
func (store *Store) DecrementCreditsIfEnough(ctx context.Context, userID credits.UserID, amount credits.PositiveCreditAmount) error {
	result := store.db.WithContext(ctx).
		Model(&UserCredit{}).
		Where("user_id = ? AND credits >= ?", userID.String(), amount.Int64()).
		Update("credits", gorm.Expr("credits - ?", amount.Int64()))
	if result.Error != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeDecrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeInsufficient, credits.ErrInsufficientFunds)
	}
	return nil
}

// RecordEvent inserts the payment event row; the unique event key turns a
// redelivered event into credits.ErrDuplicateEvent.
func (store *Store) RecordEvent(ctx context.Context, event credits.PaymentEvent) error {
	row := PaymentEvent{
		EventKey: event.EventKey.String(),
		Provider: event.Provider,
		UserID:   event.UserID.String(),
		Credits:  event.Credits.Int64(),
		Metadata: datatypesJSON(event.MetadataJSON.String()),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isEventConflict(err) {
		return wrapStoreError(errorSubjectEvent, errorCodeDuplicate, credits.ErrDuplicateEvent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeInsert, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return credits.WrapError(errorOperationStore, subject, code, err)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isEventConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintPaymentEventKey
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

package credits

import (
	"context"
	"fmt"
)

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetCredits(ctx context.Context, userID UserID) (CreditAmount, bool, error)
	UpsertCredits(ctx context.Context, userID UserID, amount CreditAmount) error
	IncrementCredits(ctx context.Context, userID UserID, amount PositiveCreditAmount) error
	DecrementCreditsIfEnough(ctx context.Context, userID UserID, amount PositiveCreditAmount) error
	RecordEvent(ctx context.Context, event PaymentEvent) error
}

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the current balance. A user without a row reads as zero with
// a nil error; store failures are returned to the caller, never masked as zero.
func (service *Service) Balance(ctx context.Context, userID UserID) (CreditAmount, error) {
	amount, found, err := service.store.GetCredits(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return amount, nil
}

// SetBalance upserts the full balance value for a user.
func (service *Service) SetBalance(ctx context.Context, userID UserID, amount CreditAmount) error {
	operationError := service.store.UpsertCredits(ctx, userID, amount)
	service.logOperation(ctx, OperationLog{
		Operation: operationSetBalance,
		UserID:    userID,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// Add increments the balance by a positive amount. The increment is a single
// storage-layer expression, so concurrent adds for the same user never lose
// updates.
func (service *Service) Add(ctx context.Context, userID UserID, amount PositiveCreditAmount) error {
	operationError := service.store.IncrementCredits(ctx, userID, amount)
	service.logOperation(ctx, OperationLog{
		Operation: operationAdd,
		UserID:    userID,
		Amount:    amount.ToCreditAmount(),
		Error:     operationError,
	})
	return operationError
}

// Deduct decrements the balance by a positive amount. The guard and the
// decrement are one conditional storage-layer update: when the balance is
// lower than the amount, ErrInsufficientFunds is returned and nothing changes.
func (service *Service) Deduct(ctx context.Context, userID UserID, amount PositiveCreditAmount) error {
	operationError := service.store.DecrementCreditsIfEnough(ctx, userID, amount)
	service.logOperation(ctx, OperationLog{
		Operation: operationDeduct,
		UserID:    userID,
		Amount:    amount.ToCreditAmount(),
		Error:     operationError,
	})
	return operationError
}

// Grant records a provider payment event and increments the balance in one
// transaction. The event key carries a unique constraint: a redelivered event
// fails the record step with ErrDuplicateEvent and grants nothing.
func (service *Service) Grant(ctx context.Context, userID UserID, amount PositiveCreditAmount, eventKey EventKey, provider string, metadata MetadataJSON) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		event, err := NewPaymentEvent(eventKey, provider, userID, amount, metadata)
		if err != nil {
			return err
		}
		if err := transactionStore.RecordEvent(ctx, event); err != nil {
			return err
		}
		return transactionStore.IncrementCredits(ctx, userID, amount)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationGrant,
		UserID:    userID,
		Amount:    amount.ToCreditAmount(),
		EventKey:  eventKey,
		Provider:  provider,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

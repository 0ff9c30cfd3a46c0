package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/logger"
	"github.com/nimasrn/ledger-book/pkg/money"
)

// TxRunner runs fn in one atomic unit of work; the unit travels in ctx.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerStore interface {
	TxRunner
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	Update(ctx context.Context, c *model.Customer) (*model.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*model.Customer, error)
	ApplyDelta(ctx context.Context, id uuid.UUID, delta money.Amount, at time.Time) (*model.Customer, error)
	SumTransactions(ctx context.Context, id uuid.UUID) (money.Amount, error)
}

type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, desc bool) ([]*model.Transaction, error)
	ListSince(ctx context.Context, from time.Time) ([]*model.Transaction, error)
}

// EventPublisher receives an event after the mutation it describes has committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.LedgerEvent) error
}

// LedgerService is the only writer of customer balances.
type LedgerService struct {
	customers    CustomerStore
	transactions TransactionStore
	publisher    EventPublisher
	locks        *keyedLocker
	clock        func() time.Time
}

type LedgerOption func(*LedgerService)

func WithEventPublisher(p EventPublisher) LedgerOption {
	return func(s *LedgerService) {
		s.publisher = p
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) {
		s.clock = now
	}
}

func NewLedgerService(customers CustomerStore, transactions TransactionStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		customers:    customers,
		transactions: transactions,
		locks:        newKeyedLocker(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is truncated to what postgres timestamps can hold.
func (s *LedgerService) now() time.Time {
	return s.clock().Truncate(time.Microsecond)
}

func (s *LedgerService) AddCustomer(ctx context.Context, in model.CustomerInput) (*model.Customer, error) {
	in, err := normalizeCustomerInput(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Customer{
		ID:          uuid.New(),
		Name:        in.Name,
		Phone:       in.Phone,
		Address:     in.Address,
		Photo:       in.Photo,
		TotalDue:    money.Zero,
		CreatedDate: now,
		LastUpdated: now,
	}

	unlock := s.locks.Lock(c.ID)
	created, err := s.customers.Create(ctx, c)
	unlock()
	if err != nil {
		return nil, storeError("create customer", err, c.ID, uuid.Nil)
	}

	s.publish(ctx, model.LedgerEvent{Kind: model.EventCustomerCreated, CustomerID: created.ID, TotalDue: created.TotalDue, At: now})
	return created, nil
}

// UpdateCustomer replaces the profile fields. Balance, creation date and
// transactions are left untouched.
func (s *LedgerService) UpdateCustomer(ctx context.Context, id uuid.UUID, in model.CustomerInput) (*model.Customer, error) {
	in, err := normalizeCustomerInput(in)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *model.Customer
	err = s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.Get(ctx, id)
		if err != nil {
			return err
		}
		c.Name = in.Name
		c.Phone = in.Phone
		c.Address = in.Address
		c.Photo = in.Photo
		c.LastUpdated = s.now()

		updated, err = s.customers.Update(ctx, c)
		return err
	})
	if err != nil {
		return nil, storeError("update customer", err, id, uuid.Nil)
	}

	s.publish(ctx, model.LedgerEvent{Kind: model.EventCustomerUpdated, CustomerID: id, TotalDue: updated.TotalDue, At: updated.LastUpdated})
	return updated, nil
}

// DeleteCustomer removes the customer together with all of its transactions.
func (s *LedgerService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		last    *model.Customer
		removed int64
	)
	err := s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.Get(ctx, id)
		if err != nil {
			return err
		}
		last = c
		if removed, err = s.transactions.DeleteByCustomer(ctx, id); err != nil {
			return err
		}
		return s.customers.Delete(ctx, id)
	})
	if err != nil {
		return storeError("delete customer", err, id, uuid.Nil)
	}

	logger.Debug("customer deleted", "customer_id", id, "transactions", removed)
	s.publish(ctx, model.LedgerEvent{Kind: model.EventCustomerDeleted, CustomerID: id, TotalDue: last.TotalDue, At: s.now()})
	return nil
}

// AddTransaction records a credit or payment and applies its signed amount
// to the owner's total due in the same unit of work.
func (s *LedgerService) AddTransaction(ctx context.Context, in model.TransactionInput) (*model.Transaction, error) {
	if !in.Type.Valid() {
		return nil, invalid("type", "must be credit or payment")
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}

	now := s.now()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.Truncate(time.Microsecond)
	}
	txn := &model.Transaction{
		ID:         uuid.New(),
		CustomerID: in.CustomerID,
		Type:       in.Type,
		Amount:     in.Amount,
		Date:       date,
		Note:       trimOptional(in.Note),
	}

	unlock := s.locks.Lock(in.CustomerID)
	defer unlock()

	var (
		created *model.Transaction
		owner   *model.Customer
	)
	err := s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		// the delta goes first: it locks the owner row and fails fast on an unknown customer
		if owner, err = s.customers.ApplyDelta(ctx, in.CustomerID, txn.Delta(), now); err != nil {
			return err
		}
		created, err = s.transactions.Create(ctx, txn)
		return err
	})
	if err != nil {
		return nil, storeError("add transaction", err, in.CustomerID, txn.ID)
	}

	s.publish(ctx, model.LedgerEvent{
		Kind:          model.EventTransactionAdded,
		CustomerID:    owner.ID,
		TransactionID: &created.ID,
		Type:          created.Type,
		Amount:        created.Amount,
		TotalDue:      owner.TotalDue,
		At:            now,
	})
	return created, nil
}

// DeleteTransaction reverses exactly the transaction's own contribution to
// the owner's total due, then removes it.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		return storeError("get transaction", err, uuid.Nil, id)
	}

	unlock := s.locks.Lock(txn.CustomerID)
	defer unlock()

	now := s.now()
	var owner *model.Customer
	err = s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		// re-read under the customer lock, it may have been removed meanwhile
		current, err := s.transactions.Get(ctx, id)
		if err != nil {
			return err
		}
		if owner, err = s.customers.ApplyDelta(ctx, current.CustomerID, current.Delta().Neg(), now); err != nil {
			return err
		}
		txn = current
		return s.transactions.Delete(ctx, id)
	})
	if err != nil {
		return storeError("delete transaction", err, txn.CustomerID, id)
	}

	s.publish(ctx, model.LedgerEvent{
		Kind:          model.EventTransactionDeleted,
		CustomerID:    owner.ID,
		TransactionID: &txn.ID,
		Type:          txn.Type,
		Amount:        txn.Amount,
		TotalDue:      owner.TotalDue,
		At:            now,
	})
	return nil
}

func (s *LedgerService) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, storeError("get customer", err, id, uuid.Nil)
	}
	return c, nil
}

// ListTransactions returns the customer's transactions, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, customerID uuid.UUID) ([]*model.Transaction, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, storeError("get customer", err, customerID, uuid.Nil)
	}
	list, err := s.transactions.ListByCustomer(ctx, customerID, true)
	if err != nil {
		return nil, storeError("list transactions", err, customerID, uuid.Nil)
	}
	return list, nil
}

// Reconcile compares the stored total due with a full summation of the
// customer's transactions. A mismatch is reported with ErrBalanceDrift and
// never repaired.
func (s *LedgerService) Reconcile(ctx context.Context, id uuid.UUID) (*model.Reconciliation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec := &model.Reconciliation{CustomerID: id}
	err := s.customers.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.customers.Get(ctx, id)
		if err != nil {
			return err
		}
		rec.Stored = c.TotalDue
		rec.Summed, err = s.customers.SumTransactions(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError("reconcile", err, id, uuid.Nil)
	}

	rec.Consistent = rec.Stored == rec.Summed
	if !rec.Consistent {
		logger.Error("balance drift detected", "customer_id", id, "stored", rec.Stored.String(), "summed", rec.Summed.String())
		return rec, ErrBalanceDrift
	}
	return rec, nil
}

func (s *LedgerService) publish(ctx context.Context, ev model.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	ev.ID = uuid.New()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish ledger event", "kind", ev.Kind, "customer_id", ev.CustomerID, "error", err)
	}
}

func normalizeCustomerInput(in model.CustomerInput) (model.CustomerInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" {
		return in, invalid("name", "must not be empty")
	}
	if in.Phone == "" {
		return in, invalid("phone", "must not be empty")
	}
	in.Address = trimOptional(in.Address)
	if len(in.Photo) == 0 {
		in.Photo = nil
	}
	return in, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/pkg/money"
)

type EventKind string

const (
	EventCustomerCreated    EventKind = "customer.created"
	EventCustomerUpdated    EventKind = "customer.updated"
	EventCustomerDeleted    EventKind = "customer.deleted"
	EventTransactionAdded   EventKind = "transaction.added"
	EventTransactionDeleted EventKind = "transaction.deleted"
)

// LedgerEvent describes a committed ledger mutation.
type LedgerEvent struct {
	ID            uuid.UUID       `json:"id"`
	Kind          EventKind       `json:"kind"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	Type          TransactionType `json:"type,omitempty"`
	Amount        money.Amount    `json:"amount"`
	TotalDue      money.Amount    `json:"total_due"`
	At            time.Time       `json:"at"`
}

// Reconciliation compares the stored total due against a full summation.
type Reconciliation struct {
	CustomerID uuid.UUID    `json:"customer_id"`
	Stored     money.Amount `json:"stored"`
	Summed     money.Amount `json:"summed"`
	Consistent bool         `json:"consistent"`
}

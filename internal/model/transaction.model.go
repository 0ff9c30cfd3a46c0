package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/pkg/money"
)

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	// TransactionCredit is goods given on credit; it raises the amount due.
	TransactionCredit TransactionType = "credit"
	// TransactionPayment is money received; it lowers the amount due.
	TransactionPayment TransactionType = "payment"
)

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == TransactionCredit || t == TransactionPayment
}

// Label is the display name used in statements.
func (t TransactionType) Label() string {
	switch t {
	case TransactionCredit:
		return "Credit"
	case TransactionPayment:
		return "Payment"
	}
	return string(t)
}

// Delta is the signed effect of amount on the customer's total due.
func (t TransactionType) Delta(amount money.Amount) money.Amount {
	if t == TransactionPayment {
		return amount.Neg()
	}
	return amount
}

type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Type       TransactionType `json:"type"`
	Amount     money.Amount    `json:"amount"`
	Date       time.Time       `json:"date"`
	Note       *string         `json:"note,omitempty"`
}

// Delta is the signed effect of this transaction on its owner's total due.
func (t *Transaction) Delta() money.Amount {
	return t.Type.Delta(t.Amount)
}

// TransactionInput is a request to record a transaction. A nil Date means now.
type TransactionInput struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Type       TransactionType `json:"type"`
	Amount     money.Amount    `json:"amount"`
	Date       *time.Time      `json:"date,omitempty"`
	Note       *string         `json:"note,omitempty"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/pkg/money"
)

// Customer is a ledger account. TotalDue always equals the sum of credits
// minus the sum of payments of the customer's current transactions.
type Customer struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone"`
	Address     *string      `json:"address,omitempty"`
	Photo       []byte       `json:"photo,omitempty"`
	TotalDue    money.Amount `json:"total_due"`
	CreatedDate time.Time    `json:"created_date"`
	LastUpdated time.Time    `json:"last_updated"`
}

// HasDue reports whether the customer owes the shop money.
func (c *Customer) HasDue() bool {
	return c.TotalDue.IsPositive()
}

// CustomerInput carries the editable profile fields of a customer.
type CustomerInput struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address *string `json:"address,omitempty"`
	Photo   []byte  `json:"photo,omitempty"`
}

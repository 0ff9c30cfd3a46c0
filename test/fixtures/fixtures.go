package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/model"
	"github.com/nimasrn/ledger-book/pkg/money"
)

var (
	CustomerAsha = model.CustomerInput{
		Name:  "Asha",
		Phone: "9998887771",
	}

	CustomerBilal = model.CustomerInput{
		Name:  "Bilal",
		Phone: "9998887772",
	}

	CustomerChitra = model.CustomerInput{
		Name:    "chitra",
		Phone:   "9998887773",
		Address: ptr("12 Market Road"),
	}
)

func NewCredit(customerID uuid.UUID, amount string, note string) model.TransactionInput {
	in := model.TransactionInput{
		CustomerID: customerID,
		Type:       model.TransactionCredit,
		Amount:     money.MustParse(amount),
	}
	if note != "" {
		in.Note = &note
	}
	return in
}

func NewPayment(customerID uuid.UUID, amount string) model.TransactionInput {
	return model.TransactionInput{
		CustomerID: customerID,
		Type:       model.TransactionPayment,
		Amount:     money.MustParse(amount),
	}
}

func OnDate(in model.TransactionInput, date time.Time) model.TransactionInput {
	in.Date = &date
	return in
}

var (
	ValidAmounts = []string{
		"0.01",
		"1",
		"12.5",
		"500",
		"99999.99",
	}

	InvalidAmounts = []string{
		"0",
		"-1",
		"0.001",
	}

	InvalidCustomerInputs = []model.CustomerInput{
		{Name: "", Phone: "9998887771"},
		{Name: "   ", Phone: "9998887771"},
		{Name: "Asha", Phone: ""},
	}
)

func ptr[T any](v T) *T {
	return &v
}

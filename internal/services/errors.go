package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nimasrn/ledger-book/internal/repository"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage failure")
	// ErrBalanceDrift means the stored total due differs from the sum of the customer's transactions.
	ErrBalanceDrift = errors.New("balance drift")
)

// ValidationError reports caller input that was rejected before any state changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a customer or transaction id that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StorageError wraps a persistence failure. The operation was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// storeError classifies an error coming out of a store call. customerID and
// transactionID name the records involved, uuid.Nil when not applicable.
func storeError(op string, err error, customerID, transactionID uuid.UUID) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &se):
		return err
	case errors.Is(err, repository.ErrCustomerNotFound):
		return &NotFoundError{Entity: "customer", ID: idString(customerID)}
	case errors.Is(err, repository.ErrTransactionNotFound):
		return &NotFoundError{Entity: "transaction", ID: idString(transactionID)}
	}
	return &StorageError{Op: op, Err: err}
}

func idString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

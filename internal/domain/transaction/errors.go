package transaction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrNegativeFee      = errors.New("fee cannot be negative")
	ErrMissingCurrency  = errors.New("currency is required")
	ErrMissingAccount   = errors.New("account is required")
	ErrMissingReference = errors.New("reference is required for transaction type")
	ErrFieldAlreadySet  = errors.New("field is immutable once set")
)

// InvalidStateError is returned when an operation is attempted on a
// transaction whose status does not allow it. The record is left untouched.
type InvalidStateError struct {
	TransactionID uuid.UUID
	Status        Status
	Operation     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s transaction %s in status %s", e.Operation, e.TransactionID, e.Status)
}

// Is matches any InvalidStateError when the target carries no transaction id.
func (e *InvalidStateError) Is(target error) bool {
	t, ok := target.(*InvalidStateError)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// AlreadyExecutedError is returned when execute is attempted twice.
type AlreadyExecutedError struct {
	TransactionID uuid.UUID
	ExternalID    string
}

func (e *AlreadyExecutedError) Error() string {
	if e.ExternalID == "" {
		return fmt.Sprintf("transaction %s was already executed", e.TransactionID)
	}
	return fmt.Sprintf("transaction %s was already executed as %s", e.TransactionID, e.ExternalID)
}

func (e *AlreadyExecutedError) Is(target error) bool {
	t, ok := target.(*AlreadyExecutedError)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrTransactionNotFound indicates a missing transaction.
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrConcurrentModification indicates the optimistic version check failed.
type ErrConcurrentModification struct {
	TransactionID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for transaction: " + e.TransactionID.String()
}

// ErrDuplicateExternalID indicates another transaction already carries the id.
type ErrDuplicateExternalID struct {
	ExternalID string
}

func (e ErrDuplicateExternalID) Error() string {
	return "transaction with external id already exists: " + e.ExternalID
}

package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByName(ctx context.Context, name string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
	Name      string
}

func (e ErrAccountNotFound) Error() string {
	if e.Name != "" {
		return "account not found: " + e.Name
	}
	return "account not found: " + e.AccountID.String()
}

// Is matches any ErrAccountNotFound when the target carries no identity.
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil && t.Name == "" {
		return true
	}
	return t.AccountID == e.AccountID && t.Name == e.Name
}

// ErrDuplicateName indicates account name uniqueness violation
type ErrDuplicateName struct {
	Name string
}

func (e ErrDuplicateName) Error() string {
	return "account with name already exists: " + e.Name
}

// ErrDuplicateDefault indicates a second default account for a type
type ErrDuplicateDefault struct {
	Type Type
}

func (e ErrDuplicateDefault) Error() string {
	return "a default account already exists for type: " + string(e.Type)
}

package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyIdentifier = errors.New("user identifier cannot be empty")

// User correlates a platform identity with local records. It is created on
// first sighting and refreshed on every later one.
type User struct {
	ID           uuid.UUID `json:"id"`
	Identifier   string    `json:"identifier"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	MobileNumber string    `json:"mobile_number,omitempty"`
	Company      string    `json:"company,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the identity data reported by the platform for a user.
type Profile struct {
	Identifier   string `json:"identifier"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
	Company      string `json:"company"`
}

// FromProfile builds the upsert candidate for p.
func FromProfile(p Profile) (*User, error) {
	if p.Identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Identifier:   p.Identifier,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		MobileNumber: p.MobileNumber,
		Company:      p.Company,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Repository defines ledger user persistence operations
type Repository interface {
	// Upsert inserts u or refreshes the profile fields of the user with the
	// same identifier, returning the stored row.
	Upsert(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByIdentifier returns nil, nil when the identifier is unknown.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
}

// ErrUserNotFound indicates missing user
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e ErrUserNotFound) Error() string {
	return "user not found: " + e.UserID.String()
}

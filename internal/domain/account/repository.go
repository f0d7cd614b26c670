package account

import "context"

// Repository defines the storage contract for identity-service accounts.
type Repository interface {
	// Create persists a new account.
	// Returns ErrAccountAlreadyExists when the email is taken.
	Create(ctx context.Context, account *Account) error

	// GetByID returns an account by id.
	// Returns ErrAccountNotFound if no such account exists.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByEmail returns an account by email.
	// Returns ErrAccountNotFound if no such account exists.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Delete removes an account permanently. Used by the signup
	// compensation when the downstream student creation fails.
	// Returns ErrAccountNotFound if no such account exists.
	Delete(ctx context.Context, id string) error
}

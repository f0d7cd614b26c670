package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/enrollhub/enrollment-hub/internal/domain/account"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a repository backed by the connection pool.
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{q: conn}
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query,
		a.ID,
		a.Email,
		a.PasswordHash,
		string(a.Role),
		a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return account.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID returns an account by id.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM accounts WHERE id = $1`

	return r.scanAccount(r.q.QueryRow(ctx, query, id))
}

// GetByEmail returns an account by email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM accounts WHERE email = $1`

	return r.scanAccount(r.q.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// Delete removes an account permanently.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}

	return nil
}

// scanAccount scans a single account row.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var a account.Account
	var role string

	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &a.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Role = account.Role(role)
	return &a, nil
}

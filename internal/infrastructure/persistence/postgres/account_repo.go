package postgres

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/account"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	conn *Connection
}

var _ account.Repository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// Create stores an account. The email column is unique.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO accounts (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, account.NormalizeEmail(a.Email), a.Name, a.PasswordHash, a.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByEmail returns the account registered with email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	var a account.Account
	err := r.conn.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM accounts
		WHERE email = $1
	`, account.NormalizeEmail(email)).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("auth", "Find", shared.ErrNotFound, "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

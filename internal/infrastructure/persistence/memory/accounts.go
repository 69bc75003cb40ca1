package memory

import (
	"context"

	"github.com/feynlearn/feynlearn-hub/internal/domain/account"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// AccountRepository implements account.Repository.
type AccountRepository struct {
	s *Store
}

var _ account.Repository = (*AccountRepository)(nil)

// Create stores an account keyed by its normalized email.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := account.NormalizeEmail(a.Email)
	if _, ok := r.s.accounts[key]; ok {
		return shared.ErrEmailTaken
	}
	r.s.accounts[key] = cloneAccount(a)
	return nil
}

// GetByEmail returns the account registered with email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.accounts[account.NormalizeEmail(email)]
	if !ok {
		return nil, shared.NewDomainError("auth", "Find", shared.ErrNotFound, "account not found")
	}
	return cloneAccount(a), nil
}

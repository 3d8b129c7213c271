// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"metawallet/internal/domain"
	"metawallet/internal/repository"
	"metawallet/internal/util"
)

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account into the database using the provided DBExecutor.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (id, name, role, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5)`
	if _, err := q.ExecContext(ctx, query, account.ID, account.Name, account.Role, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID using the provided DBExecutor.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, name, role, created_at, updated_at FROM accounts WHERE id = $1`
	err := q.GetContext(ctx, &account, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %s: %w", id, err)
	}
	return &account, nil
}

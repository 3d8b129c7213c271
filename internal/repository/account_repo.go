// internal/repository/account_repo.go
package repository

import (
	"context"

	"metawallet/internal/domain"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount adds a new account to the database using the provided DBExecutor.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID retrieves an account by its ID using the provided DBExecutor.
	GetAccountByID(ctx context.Context, q DBExecutor, id string) (*domain.Account, error)
}

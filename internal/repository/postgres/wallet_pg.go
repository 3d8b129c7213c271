// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"metawallet/internal/domain"
	"metawallet/internal/repository"
	"metawallet/internal/util"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// CreateWallet inserts a new wallet into the database using the provided DBExecutor.
// A nil balance is stored as NULL and materializes on the first mutation.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (id, account_id, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5)`
	if _, err := q.ExecContext(ctx, query, wallet.ID, wallet.AccountID, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWalletByAccountID retrieves the wallet owned by the given account.
func (r *WalletRepository) GetWalletByAccountID(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, account_id, balance, created_at, updated_at FROM wallets WHERE account_id = $1`
	err := q.GetContext(ctx, &wallet, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for account %s: %w", accountID, err)
	}
	return &wallet, nil
}

// GetWalletByAccountIDForUpdate retrieves the wallet owned by the given account
// and row-locks it until the surrounding transaction ends. Callers must run
// this inside a transaction; the lock serializes the read-modify-write.
func (r *WalletRepository) GetWalletByAccountIDForUpdate(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, account_id, balance, created_at, updated_at FROM wallets WHERE account_id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &wallet, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet for account %s: %w", accountID, err)
	}
	return &wallet, nil
}

// SetWalletBalance persists an absolute balance for a wallet.
func (r *WalletRepository) SetWalletBalance(ctx context.Context, q repository.DBExecutor, walletID string, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, balance, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance for ID %s: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet balance for ID %s: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when updating wallet balance for ID %s: %w", walletID, util.ErrWalletNotFound)
	}
	return nil
}

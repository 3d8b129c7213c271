// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"metawallet/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
//
// Balance writes go exclusively through SetWalletBalance, and only after the
// row has been claimed with GetWalletByAccountIDForUpdate inside a
// transaction, so the read-modify-write on one wallet is serialized.
type WalletRepository interface {
	// CreateWallet adds a new wallet to the database using the provided DBExecutor.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByAccountID retrieves the wallet owned by the given account.
	GetWalletByAccountID(ctx context.Context, q DBExecutor, accountID string) (*domain.Wallet, error)
	// GetWalletByAccountIDForUpdate retrieves the wallet owned by the given
	// account and row-locks it for the duration of the surrounding transaction.
	GetWalletByAccountIDForUpdate(ctx context.Context, q DBExecutor, accountID string) (*domain.Wallet, error)
	// SetWalletBalance persists an absolute balance for a wallet.
	SetWalletBalance(ctx context.Context, q DBExecutor, walletID string, balance int64) error
}

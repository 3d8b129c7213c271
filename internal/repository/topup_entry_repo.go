// internal/repository/topup_entry_repo.go
package repository

import (
	"context"

	"metawallet/internal/domain"
)

// TopUpEntryRepository defines the interface for top-up audit records.
type TopUpEntryRepository interface {
	// CreateEntry adds a new top-up audit record using the provided DBExecutor.
	CreateEntry(ctx context.Context, q DBExecutor, entry *domain.TopUpEntry) error
	// GetEntriesByWalletID retrieves paginated audit records for a wallet,
	// newest first, together with the total count.
	GetEntriesByWalletID(ctx context.Context, q DBExecutor, walletID string, limit, offset int) ([]domain.TopUpEntry, int64, error)
}
